package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ValidationError reports a malformed request. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// validateStruct checks the validate tags on req and reports the first
// failure as a *ValidationError.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return &ValidationError{Field: fe.Field(), Message: "is required"}
	case "gte":
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("must be at least %s", fe.Param())}
	case "lte":
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("must be at most %s", fe.Param())}
	default:
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed %q validation", fe.Tag())}
	}
}
