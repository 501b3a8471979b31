package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Wuchinator/landing-analytics/internal/store"
	"github.com/go-playground/validator/v10"
)

var ErrInvalid = errors.New("validation failed")

var validate *validator.Validate

// A single validator instance is used, because it caches struct parsing.
func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// A zero timestamp counts as missing for "required".
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		ts, ok := v.Interface().(store.Timestamp)
		if !ok || ts.IsZero() {
			return nil
		}
		return ts.String()
	}, store.Timestamp{})
}

// FieldError is a problem with a single input field.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Error lists every field that failed validation. It matches ErrInvalid
// with errors.Is.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Detail)
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, ", "))
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Missing builds an Error for required fields that were not supplied.
func Missing(fields ...string) *Error {
	e := &Error{Fields: make([]FieldError, 0, len(fields))}
	for _, f := range fields {
		e.Fields = append(e.Fields, FieldError{Field: f, Detail: "is required"})
	}
	return e
}

// Struct validates v against its `validate` tags. Tag failures come back
// as *Error; anything else is a programming error and is returned as is.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation: %w", err)
	}

	e := &Error{Fields: make([]FieldError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		e.Fields = append(e.Fields, FieldError{
			Field:  fe.Field(),
			Detail: detail(fe),
		})
	}
	return e
}

func detail(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}
