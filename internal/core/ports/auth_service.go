package ports

import (
	"context"
	"time"

	"github.com/youthcouncil/portal/internal/core/domain"
)

// RegisterYouthInput carries the youth self-registration form.
type RegisterYouthInput struct {
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	Password   string
	Confirm    string
	Profile    domain.YouthProfile
	Attachment *Attachment // optional
}

// RegisterOfficialInput carries the official registration wizard payload.
type RegisterOfficialInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Confirm   string
	Position  string
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	Password        string
	Confirm         string
}

// ForgotPasswordResult is returned by ForgotPassword. Token is set only when
// the service was built with reset-token exposure enabled.
type ForgotPasswordResult struct {
	Message string
	Token   string
}

// TokenClaims is the decoded content of a bearer token.
type TokenClaims struct {
	UserID    string
	UserType  domain.UserType
	Roles     []string
	JTI       string
	ExpiresAt time.Time
}

// Principal rebuilds the token holder's identity from the claims.
func (c *TokenClaims) Principal() *domain.Principal {
	p := &domain.Principal{ID: c.UserID, UserType: c.UserType, Roles: append([]string(nil), c.Roles...)}
	p.Normalize()
	return p
}

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (*TokenClaims, error)
}

// AuthService is the use-case surface behind the /auth endpoints.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.Principal, error)
	Logout(ctx context.Context, claims *TokenClaims) error
	Me(ctx context.Context, userID string) (*domain.Principal, error)
	RegisterYouth(ctx context.Context, in RegisterYouthInput) (*domain.Principal, error)
	RegisterOfficial(ctx context.Context, in RegisterOfficialInput) (*domain.Principal, error)
	SendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (alreadyVerified bool, err error)
	ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error)
	ResetPasswordWithToken(ctx context.Context, token, password, confirm string) error
	ChangePassword(ctx context.Context, in ChangePasswordInput) error
	AssignRoles(ctx context.Context, userID string, roles []string) (*domain.Principal, error)
}
