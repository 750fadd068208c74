package pricing

import (
	"fmt"
	"strings"
)

// Violation pinpoints a single invalid cart field.
type Violation struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidCartError reports all user-correctable problems found while pricing
// a cart. Callers surface it as a 400 with field-level details.
type InvalidCartError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *InvalidCartError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "invalid cart"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("line %d %s: %s", v.Line, v.Field, v.Message))
	}
	return "invalid cart: " + strings.Join(parts, "; ")
}

func (e *InvalidCartError) add(line int, field, message string) {
	e.Violations = append(e.Violations, Violation{Line: line, Field: field, Message: message})
}

func (e *InvalidCartError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
