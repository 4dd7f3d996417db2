package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/biblioteca/internal/apperror"
	"github.com/sakif/biblioteca/internal/model"
)

// newValidator builds the request validator. Field names in errors are the
// JSON names, and "program"/"location" only accept the form's choice lists.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("program", oneOfList(model.Programs))
	_ = v.RegisterValidation("location", oneOfList(model.Locations))

	return v
}

func oneOfList(choices []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		for _, c := range choices {
			if value == c {
				return true
			}
		}
		return false
	}
}

// validateRequest runs the struct tags on req and turns the first failure
// into an apperror carrying the offending field.
func validateRequest(v *validator.Validate, req interface{}) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("body", "invalid request")
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "number":
		return fmt.Sprintf("%s must be a whole number", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "program", "location":
		return fmt.Sprintf("%s is not one of the offered choices", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
