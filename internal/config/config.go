package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	LLM       LLMConfig       `mapstructure:"llm"`
	GA4       GA4Config       `mapstructure:"ga4"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Dates     DatesConfig     `mapstructure:"dates"`
	Log       LogConfig       `mapstructure:"log"`
	Allowlist AllowlistConfig `mapstructure:"allowlist"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type OpenAIConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	APIEndpoint    string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	DeploymentName string `mapstructure:"deployment"`
	APIVersion     string `mapstructure:"api_version"`
}

type LLMConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
}

type GA4Config struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	PropertyID      string `mapstructure:"property_id"`
	Endpoint        string `mapstructure:"endpoint"`
	MaxRetries      uint64 `mapstructure:"max_retries"`
}

type AuditConfig struct {
	CSVFile string `mapstructure:"csv_file"`
}

type AgentsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatesConfig struct {
	DefaultDays int `mapstructure:"default_days"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AllowlistConfig struct {
	Metrics    []string `mapstructure:"metrics"`
	Dimensions []string `mapstructure:"dimensions"`
	Checks     []string `mapstructure:"checks"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("openai.provider", "openai")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.deployment", "gpt-4o")
	v.SetDefault("openai.api_version", "2023-05-15")

	v.SetDefault("llm.timeout", "15s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 500)

	v.SetDefault("ga4.credentials_file", "credentials.json")
	v.SetDefault("ga4.property_id", "")
	v.SetDefault("ga4.endpoint", "")
	v.SetDefault("ga4.max_retries", 2)

	v.SetDefault("audit.csv_file", "screamingfrog.csv")
	v.SetDefault("agents.timeout", "20s")
	v.SetDefault("dates.default_days", 7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("allowlist.metrics", []string{})
	v.SetDefault("allowlist.dimensions", []string{})
	v.SetDefault("allowlist.checks", []string{})
}

// LoadConfig reads .env, then config.yaml from the working directory or
// ./configs, then environment variables (OPENAI_API_KEY, GA4_PROPERTY_ID,
// AGENTS_TIMEOUT, ...).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Agents.Timeout <= 0 {
		return fmt.Errorf("agents.timeout must be positive, got %s", c.Agents.Timeout)
	}
	if c.Dates.DefaultDays <= 0 {
		return fmt.Errorf("dates.default_days must be positive, got %d", c.Dates.DefaultDays)
	}
	switch c.OpenAI.Provider {
	case "openai", "azure":
	default:
		return fmt.Errorf("unsupported openai.provider %q", c.OpenAI.Provider)
	}
	return nil
}
