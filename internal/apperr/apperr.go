// Package apperr defines the error kinds the service layer reports and the
// HTTP handlers translate into status codes.
package apperr

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kinds. Match with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication error")
	ErrNotFound   = errors.New("not found")
)

// Error is a client-facing failure with a human-readable message and optional
// payload (the conflicting resource, or the fields that failed validation).
type Error struct {
	Kind    error
	Message string
	Data    any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation reports bad or missing input.
func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// Conflict reports a uniqueness violation. data, when non-nil, is the existing resource.
func Conflict(message string, data any) error {
	return &Error{Kind: ErrConflict, Message: message, Data: data}
}

// Auth reports missing or bad credentials.
func Auth(message string) error {
	return &Error{Kind: ErrAuth, Message: message}
}

// NotFound reports a missing resource, or one the caller does not own.
func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v's `validate` struct tags. On failure it returns a
// validation error carrying message and the offending JSON field names.
func Validate(v any, message string) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = fe.Field()
	}
	return &Error{Kind: ErrValidation, Message: message, Data: map[string]any{"fields": fields}}
}
