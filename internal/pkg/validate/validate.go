// Package validate wraps go-playground/validator with the portal's field
// naming, messages and the "password" tag bound to a password policy. The
// API server and portalctl share it so both report the same text.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/youthcouncil/portal/internal/core/domain"
)

type Validator struct {
	v      *validator.Validate
	policy domain.PasswordPolicy
}

func New(policy domain.PasswordPolicy) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	out := &Validator{v: v, policy: policy}
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return out.policy.Check(fl.Field().String()) == nil
	})
	return out
}

// Struct validates i. Failures come back as a *domain.ValidationError keyed
// by the JSON or form field name.
func (v *Validator) Struct(i any) error {
	if err := v.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := &domain.ValidationError{}
			for _, fe := range ve {
				out.Add(fe.Field(), v.fieldError(fe))
			}
			return out
		}
		return err
	}
	return nil
}

// fieldError converts a single FieldError into a human-readable message.
func (v *Validator) fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "eqfield":
		return domain.ErrPasswordMismatch.Error()
	case "eq":
		if fe.Kind() == reflect.Bool {
			return field + " must be accepted"
		}
		return fmt.Sprintf("%s must equal %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field)
	case "password":
		if err := v.policy.Check(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
		return field + " does not meet the password policy"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// fieldName reports the json name, falling back to the form name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
