// Package workflow implements the multi-step account flows as explicit state
// machines independent of any UI: official registration, youth
// self-registration with email verification, password reset and login.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/pkg/validate"
)

// ErrUnexpectedStep is returned when input arrives in a step that does not
// accept it.
var ErrUnexpectedStep = errors.New("input not accepted in the current step")

// RegistrationStep is one of CollectingProfile, CollectingCredentials or
// Submitted.
type RegistrationStep interface {
	registrationStep() string
}

type CollectingProfile struct{}

type CollectingCredentials struct {
	Profile OfficialProfile
}

type Submitted struct {
	Profile   OfficialProfile
	Principal *domain.Principal
}

func (CollectingProfile) registrationStep() string     { return "collecting_profile" }
func (CollectingCredentials) registrationStep() string { return "collecting_credentials" }
func (Submitted) registrationStep() string             { return "submitted" }

// StepName returns a stable label for s.
func StepName(s RegistrationStep) string { return s.registrationStep() }

type OfficialProfile struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	Email     string `json:"email"     validate:"required,email"`
	Position  string `json:"position"`
}

type Credentials struct {
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"acceptTerms"     validate:"eq=true"`
}

// SubmitProfile moves CollectingProfile to CollectingCredentials once the
// profile is complete.
func SubmitProfile(v *validate.Validator, s RegistrationStep, p OfficialProfile) (RegistrationStep, error) {
	if _, ok := s.(CollectingProfile); !ok {
		return s, fmt.Errorf("%w: %s", ErrUnexpectedStep, StepName(s))
	}
	if err := v.Struct(p); err != nil {
		return s, err
	}
	return CollectingCredentials{Profile: p}, nil
}

// CheckCredentials validates the credentials step without leaving it.
func CheckCredentials(v *validate.Validator, s RegistrationStep, c Credentials) error {
	if _, ok := s.(CollectingCredentials); !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedStep, StepName(s))
	}
	return v.Struct(c)
}

type OfficialRegistrar interface {
	SignupOfficial(ctx context.Context, req transport.OfficialSignupRequest) (*domain.Principal, error)
}

// Wizard drives the official registration steps against the API.
type Wizard struct {
	step RegistrationStep
	api  OfficialRegistrar
	v    *validate.Validator
}

func NewWizard(api OfficialRegistrar, policy domain.PasswordPolicy) *Wizard {
	return &Wizard{step: CollectingProfile{}, api: api, v: validate.New(policy)}
}

func (w *Wizard) Step() RegistrationStep { return w.step }

func (w *Wizard) SubmitProfile(p OfficialProfile) error {
	next, err := SubmitProfile(w.v, w.step, p)
	if err != nil {
		return err
	}
	w.step = next
	return nil
}

// Submit posts the accumulated form. The wizard reaches Submitted only when
// the server accepts it; otherwise it stays on the credentials step.
func (w *Wizard) Submit(ctx context.Context, c Credentials) error {
	if err := CheckCredentials(w.v, w.step, c); err != nil {
		return err
	}
	profile := w.step.(CollectingCredentials).Profile

	p, err := w.api.SignupOfficial(ctx, transport.OfficialSignupRequest{
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Email:           profile.Email,
		Password:        c.Password,
		ConfirmPassword: c.ConfirmPassword,
		Position:        profile.Position,
	})
	if err != nil {
		return fieldErrors(err)
	}
	w.step = Submitted{Profile: profile, Principal: p}
	return nil
}

// fieldErrors turns a 400 carrying per-field messages into a
// *domain.ValidationError so callers can place them next to the inputs.
func fieldErrors(err error) error {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && len(apiErr.Fields) > 0 {
		return &domain.ValidationError{Fields: apiErr.Fields}
	}
	return err
}
