package models

import (
	"errors"
	"strings"
)

// ErrInvalid is the base error for model validation failures.
var ErrInvalid = errors.New("invalid")

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects field errors found while validating a model.
type ValidationErrors struct {
	Errors []FieldError
}

// AddMessage records a validation failure for field.
func (v *ValidationErrors) AddMessage(field, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message})
}

// Err returns nil when no errors were recorded.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrInvalid.
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalid
}
