package errors

import (
	"fmt"
	"strings"
)

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicateName = fmt.Errorf("duplicate name")
	ErrInvalidInput  = fmt.Errorf("invalid input")
)

// FieldError is a single violated rule, keyed by the JSON field name.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// FieldErrors keeps violations in rule order so that the first entry is the
// one surfaced as the headline message.
type FieldErrors []FieldError

// Add appends a violation.
func (fe *FieldErrors) Add(field, msg string) {
	*fe = append(*fe, FieldError{Field: field, Msg: msg})
}

// First returns the first violation message, or "" when there is none.
func (fe FieldErrors) First() string {
	if len(fe) == 0 {
		return ""
	}
	return fe[0].Msg
}

// Map indexes the violations by field, keeping the first message per field.
func (fe FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(fe))
	for _, e := range fe {
		if _, ok := m[e.Field]; !ok {
			m[e.Field] = e.Msg
		}
	}
	return m
}

// ValidationError reports rejected input. It matches ErrInvalidInput under
// errors.Is.
type ValidationError struct {
	Message string
	Fields  FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Msg)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError wraps field violations under a headline message.
func NewValidationError(message string, fields FieldErrors) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// ConflictError reports a name clash with the message shown to the user. It
// matches ErrDuplicateName under errors.Is.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrDuplicateName
}

// NewConflictError builds a ConflictError.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}
