package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/youthcouncil/portal/internal/core/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, user_type, first_name, middle_name, last_name, email, password_hash,
		verified, roles, profile, attachment_key, created_at, updated_at`

// DBTX is the subset of *sql.DB and *sql.Tx the repository needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository implements ports.UserRepository on Postgres.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out := *user
	out.ID = uuid.NewString()
	if out.Roles == nil {
		out.Roles = []string{}
	}

	roles, err := json.Marshal(out.Roles)
	if err != nil {
		return nil, fmt.Errorf("encode roles: %w", err)
	}
	var profile []byte
	if out.Profile != nil {
		if profile, err = json.Marshal(out.Profile); err != nil {
			return nil, fmt.Errorf("encode profile: %w", err)
		}
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		out.ID, string(out.UserType), out.FirstName, out.MiddleName, out.LastName, out.Email, out.PasswordHash,
		out.Verified, roles, profile, out.AttachmentKey, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, time.Now().UTC())
}

func (r *UserRepository) SetRoles(ctx context.Context, id string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	encoded, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	return r.exec(ctx, `UPDATE users SET roles = $2, updated_at = $3 WHERE id = $1`, id, encoded, time.Now().UTC())
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		u        domain.User
		userType string
		roles    []byte
		profile  []byte
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &userType, &u.FirstName, &u.MiddleName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Verified, &roles, &profile, &u.AttachmentKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.UserType = domain.UserType(userType)
	if err := json.Unmarshal(roles, &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if len(profile) > 0 {
		u.Profile = &domain.YouthProfile{}
		if err := json.Unmarshal(profile, u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (r *UserRepository) exec(ctx context.Context, query, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
