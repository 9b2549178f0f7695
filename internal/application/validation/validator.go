// Package validation wraps go-playground/validator for application DTOs and
// import rows, mapping failures onto domain errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule in a human-readable form
type FieldError struct {
	Field   string
	Message string
}

var (
	instance *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator, configured on first use
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report field names as they appear in csv/json tags
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"csv", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		instance = v
	})
	return instance
}

// Struct validates s and returns a DomainError carrying code when any rule fails
func Struct(s any, code string) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if len(fields) == 0 {
		return shared.NewDomainError(code, err.Error())
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return shared.NewDomainError(code, strings.Join(parts, "; "))
}

// Fields flattens validator errors into FieldErrors
func Fields(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	fields := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, FieldError{Field: e.Field(), Message: message(e)})
	}
	return fields
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_with", "required_without":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "uuid", "uuid4":
		return "Invalid UUID format"
	case "ip":
		return "Invalid IP address"
	default:
		return "Invalid value"
	}
}
