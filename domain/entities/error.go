package entities

import "fmt"

// ErrorDetail is the structured form of a host error, as attached to tick
// reports and log lines. Type is one of "load", "bounds", "trap", "capability",
// "abort", "event", "config" or "internal".
type ErrorDetail struct {
	Details map[string]any `json:"details,omitempty"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    string         `json:"code,omitempty"`

	// Module is the module id the error is scoped to, if any.
	Module string `json:"module,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	if e.Type == "" || e.Type == "internal" {
		return e.Message
	}
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}
