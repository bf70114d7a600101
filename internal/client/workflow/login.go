package workflow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/core/domain"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.Principal, error)
	Logout(ctx context.Context) error
}

// Session is the part of session.Manager the login flows write to.
type Session interface {
	SetPrincipal(p *domain.Principal) error
}

// Login authenticates and stores the returned principal; the session picks
// the active role.
func Login(ctx context.Context, api Authenticator, s Session, email, password string) (*domain.Principal, error) {
	p, err := api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.SetPrincipal(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Logout tells the server to revoke the token and clears the local session
// whatever the server answered.
func Logout(ctx context.Context, api Authenticator, s Session, log zerolog.Logger) error {
	if err := api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
	}
	return s.SetPrincipal(nil)
}
