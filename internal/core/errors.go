package core

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so callers can retry, reconfigure or alert.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindParsingFailure  ErrorKind = "parsing_failure"
	KindAuth            ErrorKind = "upstream_auth"
	KindQuota           ErrorKind = "upstream_quota"
	KindInvalidProperty ErrorKind = "upstream_invalid_property"
	KindTimeout         ErrorKind = "upstream_timeout"
	KindUnknown         ErrorKind = "upstream_unknown"
	KindSchemaGap       ErrorKind = "schema_gap"
	KindNoData          ErrorKind = "no_data"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindQuota, KindTimeout, KindUnknown:
		return true
	}
	return false
}

type ErrorDescriptor struct {
	Agent       AgentName `json:"agent"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Details     []string  `json:"details,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Retryable   bool      `json:"retryable"`
}

func (e *ErrorDescriptor) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s[%s]: %s", e.Agent, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s[%s]: %s (%s)", e.Agent, e.Kind, e.Message, strings.Join(e.Details, "; "))
}

// NewDescriptor builds a descriptor with Retryable derived from kind.
func NewDescriptor(kind ErrorKind, message string, details ...string) *ErrorDescriptor {
	return &ErrorDescriptor{
		Kind:      kind,
		Message:   message,
		Details:   details,
		Retryable: kind.Retryable(),
	}
}
