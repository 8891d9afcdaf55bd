package extractor

import (
	"reflect"
	"strings"

	"github.com/openai/openai-go"

	"github.com/sozercan/siteinsight/internal/allowlist"
)

const toolName = "build_report_query"

// extractionArgs is the shape the LLM is asked to produce, either as the
// tool-call arguments or as a bare JSON message.
type extractionArgs struct {
	Metrics    []string          `json:"metrics"`
	Dimensions []string          `json:"dimensions"`
	DateRange  string            `json:"date_range"`
	Filters    map[string]string `json:"filters"`
}

// toolDefinition exposes extractionArgs as a function tool whose metric and
// dimension items are restricted to the allowlisted identifiers.
func toolDefinition(reg *allowlist.Registry) openai.ChatCompletionToolParam {
	schema := typeToJSONSchema(reflect.TypeOf(extractionArgs{}))
	props := schema["properties"].(map[string]interface{})
	props["metrics"] = enumArray(reg.MetricNames(), "analytics metric identifiers")
	props["dimensions"] = enumArray(reg.DimensionNames(), "analytics dimension identifiers")
	props["date_range"].(map[string]interface{})["description"] = `date phrase such as "last_7_days", "yesterday", "this month" or "2024-01-01 to 2024-01-31"`
	props["filters"].(map[string]interface{})["description"] = "exact-match filters keyed by dimension identifier"
	schema["required"] = []string{"metrics", "date_range"}

	return openai.ChatCompletionToolParam{
		Type: openai.F(openai.ChatCompletionToolTypeFunction),
		Function: openai.F(openai.FunctionDefinitionParam{
			Name:        openai.String(toolName),
			Description: openai.String("Build a structured analytics report query from the user's question"),
			Parameters:  openai.F(openai.FunctionParameters(schema)),
		}),
	}
}

func enumArray(values []string, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items": map[string]interface{}{
			"type": "string",
			"enum": values,
		},
	}
}

func typeToJSONSchema(t reflect.Type) map[string]interface{} {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		props := map[string]interface{}{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}
			jsonName := jsonFieldName(f)
			if jsonName == "" {
				continue
			}
			props[jsonName] = typeToJSONSchema(f.Type)
		}
		return map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
	case reflect.Int, reflect.Int64, reflect.Int32:
		return map[string]interface{}{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{
			"type":  "array",
			"items": typeToJSONSchema(t.Elem()),
		}
	case reflect.Map:
		return map[string]interface{}{
			"type":                 "object",
			"additionalProperties": typeToJSONSchema(t.Elem()),
		}
	default:
		return map[string]interface{}{"type": "string"}
	}
}

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.Split(tag, ",")[0]
}
