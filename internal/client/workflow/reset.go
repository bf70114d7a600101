package workflow

import (
	"context"
	"fmt"

	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/pkg/validate"
)

// ResetStep is the position of a ResetFlow.
type ResetStep int

const (
	AwaitingEmail ResetStep = iota
	AwaitingNewPassword
	Done
)

func (s ResetStep) String() string {
	switch s {
	case AwaitingEmail:
		return "awaiting_email"
	case AwaitingNewPassword:
		return "awaiting_new_password"
	case Done:
		return "done"
	}
	return fmt.Sprintf("reset_step(%d)", int(s))
}

type PasswordResetter interface {
	ForgotPassword(ctx context.Context, email string) (*transport.ForgotPasswordResponse, error)
	ResetPasswordWithToken(ctx context.Context, token, password, confirm string) (string, error)
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type newPasswordInput struct {
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ResetFlow walks AwaitingEmail → AwaitingNewPassword → Done. A step only
// advances after the server accepted it; on failure the step is kept and
// Message holds the text to show.
type ResetFlow struct {
	Step    ResetStep
	Email   string
	Message string
	// Token is set from the forgot-password response when the server echoes
	// it, or by the caller from the emailed link.
	Token string

	api PasswordResetter
	v   *validate.Validator
}

func NewResetFlow(api PasswordResetter, policy domain.PasswordPolicy) *ResetFlow {
	return &ResetFlow{Step: AwaitingEmail, api: api, v: validate.New(policy)}
}

func (f *ResetFlow) SubmitEmail(ctx context.Context, email string) error {
	if f.Step != AwaitingEmail {
		return fmt.Errorf("%w: %s", ErrUnexpectedStep, f.Step)
	}
	if err := f.v.Struct(emailInput{Email: email}); err != nil {
		f.Message = err.Error()
		return err
	}

	res, err := f.api.ForgotPassword(ctx, email)
	if err != nil {
		f.Message = transport.UserMessage(err)
		return err
	}
	f.Email = email
	f.Message = res.Message
	if res.Token != "" {
		f.Token = res.Token
	}
	f.Step = AwaitingNewPassword
	return nil
}

// SubmitNewPassword checks the pair locally first; a mismatch or weak
// password never reaches the server.
func (f *ResetFlow) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if f.Step != AwaitingNewPassword {
		return fmt.Errorf("%w: %s", ErrUnexpectedStep, f.Step)
	}
	if err := f.v.Struct(newPasswordInput{Password: password, ConfirmPassword: confirm}); err != nil {
		f.Message = err.Error()
		return err
	}
	if f.Token == "" {
		err := domain.NewValidationError("token", "token is required")
		f.Message = err.Error()
		return err
	}

	msg, err := f.api.ResetPasswordWithToken(ctx, f.Token, password, confirm)
	if err != nil {
		f.Message = transport.UserMessage(err)
		return fieldErrors(err)
	}
	f.Message = msg
	f.Step = Done
	return nil
}

// ResumeReset starts a flow at AwaitingNewPassword for a token taken from
// the reset email.
func ResumeReset(api PasswordResetter, policy domain.PasswordPolicy, token string) *ResetFlow {
	f := NewResetFlow(api, policy)
	f.Step = AwaitingNewPassword
	f.Token = token
	return f
}

type PasswordChanger interface {
	ChangePassword(ctx context.Context, current, password, confirm string) (string, error)
}

type changePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password"        validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ChangePassword updates the signed-in user's password after checking the
// new pair locally.
func ChangePassword(ctx context.Context, api PasswordChanger, policy domain.PasswordPolicy, current, password, confirm string) (string, error) {
	in := changePasswordInput{CurrentPassword: current, Password: password, ConfirmPassword: confirm}
	if err := validate.New(policy).Struct(in); err != nil {
		return "", err
	}
	msg, err := api.ChangePassword(ctx, current, password, confirm)
	if err != nil {
		return "", fieldErrors(err)
	}
	return msg, nil
}
