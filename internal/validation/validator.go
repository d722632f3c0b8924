// Package validation wraps go-playground/validator with a shared instance and
// turns field errors into VALIDATION_ERROR payloads.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const Code = "VALIDATION_ERROR"

// MaxPasswordBytes is bcrypt's input limit. The passwordbytes tag checks it
// against the UTF-8 length, not the rune count.
const MaxPasswordBytes = 72

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule. Values are never echoed back since request
// bodies here carry passwords and tokens.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// Details is the "details" member of the error body.
func (e *RequestValidationError) Details() map[string]any {
	return map[string]any{"fields": e.Fields}
}

// GetValidator returns the process-wide validator. Field names are reported
// by their json tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("passwordbytes", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= MaxPasswordBytes
		})
	})
	return validate
}

// ValidateStruct returns nil or a *RequestValidationError.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "body", Tag: "invalid", Message: "request body is invalid"}}}
	}
	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: translate(fe)})
	}
	return &RequestValidationError{Fields: out}
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"alpha":    "%s must contain letters only",
}

func translate(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "passwordbytes":
		return fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordBytes)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
