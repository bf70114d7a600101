package handler

import (
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/pkg/validate"
)

// echoValidator adapts validate.Validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validate.Validator
}

// NewValidator returns an echoValidator ready to be assigned to
// echo.Echo.Validator. The "password" tag enforces policy.
func NewValidator(policy domain.PasswordPolicy) *echoValidator {
	return &echoValidator{v: validate.New(policy)}
}

// Validate satisfies the echo.Validator interface.
func (ev *echoValidator) Validate(i any) error {
	return ev.v.Struct(i)
}
