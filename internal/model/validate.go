package model

import "fmt"

// ValidationError reports a single schema violation: which field broke
// which constraint. Validation is all-or-nothing per record; the first
// violation found is returned.
type ValidationError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Constraint)
}

// Permanent marks validation errors as non-retryable for the retry envelope.
func (e *ValidationError) Permanent() bool { return true }

func invalid(field, constraint string) *ValidationError {
	return &ValidationError{Field: field, Constraint: constraint}
}
