package ports

import (
	"context"

	"github.com/youthcouncil/portal/internal/core/domain"
)

// UserRepository defines the persistence operations the auth flows need.
// Implementations return domain.ErrUserNotFound and domain.ErrUserExists
// rather than driver errors.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	MarkVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRoles(ctx context.Context, id string, roles []string) error
}
