package orchestrators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"reliefportal/internal/domain/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
}

// validateInput runs struct-tag validation and reports the first failure as
// a ValidationError naming the field.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		return apperr.Validationf("%s %s", fe.Field(), describe(fe))
	}
	return apperr.Validation(err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("cannot exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("cannot exceed %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gtfield":
		return "must be after " + strings.ToLower(fe.Param())
	}
	return "is invalid"
}

// clock returns now, or time.Now when now is nil.
func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}

// newID returns gen(), or a fresh UUID when gen is nil.
func newID(gen func() string) string {
	if gen == nil {
		return uuid.New().String()
	}
	return gen()
}
