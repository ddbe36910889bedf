package schema

import (
	"errors"
	"strings"
)

// ErrInvalidRecord is matched by every *ValidationError via errors.Is.
var ErrInvalidRecord = errors.New("invalid passenger record")

// Violation names a field and why its value was rejected.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed its domain check, in
// record field order.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets callers test for ErrInvalidRecord.
func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Fields returns the names of the rejected fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Field
	}
	return out
}
