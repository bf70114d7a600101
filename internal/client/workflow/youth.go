package workflow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/client/transport"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/pkg/validate"
)

// YouthSignup is the self-registration form of a youth member.
type YouthSignup struct {
	FirstName             string `json:"firstName"       validate:"required"`
	MiddleName            string `json:"middleName"`
	LastName              string `json:"lastName"        validate:"required"`
	Email                 string `json:"email"           validate:"required,email"`
	Password              string `json:"password"        validate:"required,password"`
	ConfirmPassword       string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Purok                 string `json:"purok"           validate:"required"`
	Birthdate             string `json:"birthdate"       validate:"required,datetime=2006-01-02"`
	Sex                   string `json:"sex"`
	CivilStatus           string `json:"civilStatus"`
	ContactNumber         string `json:"contactNumber"`
	YouthClassification   string `json:"youthClassification"`
	EducationalBackground string `json:"educationalBackground"`
	WorkStatus            string `json:"workStatus"`
	RegisteredVoter       bool   `json:"registeredVoter"`
	VotedLastElection     bool   `json:"votedLastElection"`

	Attachment *transport.FilePart `json:"-"`
}

// Validate checks the form locally with the same rules the server applies.
func (f YouthSignup) Validate(policy domain.PasswordPolicy) error {
	return validate.New(policy).Struct(f)
}

func (f YouthSignup) request() transport.YouthSignupRequest {
	return transport.YouthSignupRequest{
		FirstName:             f.FirstName,
		MiddleName:            f.MiddleName,
		LastName:              f.LastName,
		Email:                 f.Email,
		Password:              f.Password,
		ConfirmPassword:       f.ConfirmPassword,
		Purok:                 f.Purok,
		Birthdate:             f.Birthdate,
		Sex:                   f.Sex,
		CivilStatus:           f.CivilStatus,
		ContactNumber:         f.ContactNumber,
		YouthClassification:   f.YouthClassification,
		EducationalBackground: f.EducationalBackground,
		WorkStatus:            f.WorkStatus,
		RegisteredVoter:       f.RegisteredVoter,
		VotedLastElection:     f.VotedLastElection,
		Attachment:            f.Attachment,
	}
}

type YouthRegistrar interface {
	SignupYouth(ctx context.Context, req transport.YouthSignupRequest) (*domain.Principal, error)
	SendVerification(ctx context.Context, email string) (string, error)
}

// YouthResult reports the created account and whether the verification
// email request was accepted.
type YouthResult struct {
	Principal         *domain.Principal
	VerificationSent  bool
	VerificationError error
}

// RegisterYouth validates the form, creates the account and then asks the
// server to send the verification email. A failed verification request does
// not undo the registration; it is reported in the result so the user can
// retry with send-verification.
func RegisterYouth(ctx context.Context, api YouthRegistrar, f YouthSignup, policy domain.PasswordPolicy, log zerolog.Logger) (*YouthResult, error) {
	if err := f.Validate(policy); err != nil {
		return nil, err
	}

	p, err := api.SignupYouth(ctx, f.request())
	if err != nil {
		return nil, fieldErrors(err)
	}

	res := &YouthResult{Principal: p}
	if _, err := api.SendVerification(ctx, f.Email); err != nil {
		log.Warn().Err(err).Str("user_id", p.ID).Msg("verification email request failed")
		res.VerificationError = err
		return res, nil
	}
	res.VerificationSent = true
	return res, nil
}

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) (string, error)
}

// VerifyEmail exchanges a verification token and returns the text to show:
// the server's confirmation, or its error message, or the fallback.
func VerifyEmail(ctx context.Context, api EmailVerifier, token string) (string, error) {
	if token == "" {
		return "", domain.NewValidationError("token", "token is required")
	}
	msg, err := api.VerifyEmail(ctx, token)
	if err != nil {
		return transport.UserMessage(err), err
	}
	return msg, nil
}
