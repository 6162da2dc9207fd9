package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/haulr/haulr/internal/apperr"
)

// RequiredMessage is the detail recorded for a missing required field.
const RequiredMessage = "is required"

// Validator wraps go-playground/validator and reports failures as apperr validation errors.
type Validator struct {
	validate *validator.Validate
}

// New builds a Validator that names fields by their json tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s. When any rule fails, the returned error is an
// *apperr.Error with one detail per failing field and the given message.
func (v *Validator) Struct(s any, message string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Internal(err)
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return apperr.Validation(message).WithDetails(details)
}

// Fields returns the names of failing fields in sorted order.
func Fields(err error) []string {
	appErr := apperr.From(err)
	if appErr == nil {
		return nil
	}
	out := make([]string, 0, len(appErr.Details))
	for field := range appErr.Details {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return RequiredMessage
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid id"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
