package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

const genericEmailMessage = "If the address belongs to an account, an email is on its way."

var compareHash = bcrypt.CompareHashAndPassword

// dummyHash is compared against when the email is unknown, so a failed login
// costs one bcrypt comparison whether or not the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// AuthConfig tunes AuthService behaviour.
type AuthConfig struct {
	Policy domain.PasswordPolicy
	// FrontendURL is the base for links placed in emails.
	FrontendURL string
	// ExposeResetToken echoes reset tokens in ForgotPassword results. Only
	// for non-production environments; the caller enforces that.
	ExposeResetToken bool
	// BootstrapSuperOfficial is the email of the official who receives the
	// super_official role once the address is verified. Without it nobody
	// could assign the first roles.
	BootstrapSuperOfficial string
}

// AuthService implements registration, verification, login and password
// management.
type AuthService struct {
	repo        ports.UserRepository
	tokens      *TokenIssuer
	otp         ports.OneTimeTokenStore
	mail        ports.MailQueue
	attachments ports.AttachmentStore
	cfg         AuthConfig
	log         zerolog.Logger
}

func NewAuthService(
	repo ports.UserRepository,
	tokens *TokenIssuer,
	otp ports.OneTimeTokenStore,
	mail ports.MailQueue,
	attachments ports.AttachmentStore,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.Policy.MinLength <= 0 {
		cfg.Policy = domain.DefaultPasswordPolicy()
	}
	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		otp:         otp,
		mail:        mail,
		attachments: attachments,
		cfg:         cfg,
		log:         log,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = compareHash(dummyHash(), []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if compareHash([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	p := user.Principal()
	p.Token = token
	s.log.Info().Str("user_id", user.ID).Str("user_type", string(user.UserType)).Msg("login")
	return p, nil
}

func (s *AuthService) Logout(ctx context.Context, claims *ports.TokenClaims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if claims != nil {
		s.log.Info().Str("user_id", claims.UserID).Msg("logout")
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.Principal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Principal(), nil
}

func (s *AuthService) RegisterYouth(ctx context.Context, in ports.RegisterYouthInput) (*domain.Principal, error) {
	verr := &domain.ValidationError{}
	requireField(verr, "firstName", in.FirstName)
	requireField(verr, "lastName", in.LastName)
	requireField(verr, "email", in.Email)
	requireField(verr, "purok", in.Profile.Purok)
	requireField(verr, "birthdate", in.Profile.Birthdate)
	s.checkPasswords(verr, in.Password, in.Confirm)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	profile := in.Profile
	user := &domain.User{
		UserType:     domain.UserTypeYouth,
		FirstName:    strings.TrimSpace(in.FirstName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hash),
		Roles:        []string{domain.RoleYouth},
		Profile:      &profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.Attachment != nil {
		if s.attachments == nil {
			return nil, domain.ErrAttachmentsDisabled
		}
		key, err := s.attachments.Put(ctx, *in.Attachment)
		if err != nil {
			return nil, fmt.Errorf("register youth: %w", err)
		}
		user.AttachmentKey = key
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if user.AttachmentKey != "" {
			s.log.Warn().Str("attachment_key", user.AttachmentKey).Msg("attachment orphaned by failed registration")
		}
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("purok", profile.Purok).Msg("youth registered")

	if err := s.issueVerification(ctx, created); err != nil {
		s.log.Warn().Err(err).Str("user_id", created.ID).Msg("initial verification email not issued")
	}
	return created.Principal(), nil
}

func (s *AuthService) RegisterOfficial(ctx context.Context, in ports.RegisterOfficialInput) (*domain.Principal, error) {
	verr := &domain.ValidationError{}
	requireField(verr, "firstName", in.FirstName)
	requireField(verr, "lastName", in.LastName)
	requireField(verr, "email", in.Email)
	s.checkPasswords(verr, in.Password, in.Confirm)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		UserType:     domain.UserTypeOfficial,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hash),
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("position", in.Position).Msg("official registered")

	if err := s.issueVerification(ctx, created); err != nil {
		s.log.Warn().Err(err).Str("user_id", created.ID).Msg("initial verification email not issued")
	}
	return created.Principal(), nil
}

// SendVerification re-issues a verification email. Unknown and already
// verified addresses succeed silently so the endpoint cannot be used to check
// for accounts.
func (s *AuthService) SendVerification(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("send verification: %w", err)
	}
	if user.Verified {
		return nil
	}
	return s.issueVerification(ctx, user)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	userID, err := s.consume(ctx, domain.PurposeVerifyEmail, token)
	if err != nil {
		return false, err
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, domain.ErrInvalidToken
		}
		return false, fmt.Errorf("verify email: %w", err)
	}
	if user.Verified {
		return true, nil
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("verify email: %w", err)
	}
	user.Verified = true
	s.log.Info().Str("user_id", user.ID).Msg("email verified")

	if _, err := s.promoteBootstrap(ctx, user); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("bootstrap super official not promoted")
	}
	return false, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ports.ForgotPasswordResult, error) {
	res := &ports.ForgotPasswordResult{Message: genericEmailMessage}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return res, nil
		}
		return nil, fmt.Errorf("forgot password: %w", err)
	}

	raw, err := s.issue(ctx, domain.PurposeResetPassword, user.ID)
	if err != nil {
		return nil, fmt.Errorf("forgot password: %w", err)
	}

	s.mail.Enqueue(ports.MailMessage{
		To:      user.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below within one hour to choose a new password:\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			user.DisplayName(), s.link("/reset-password", raw)),
		Kind: string(domain.PurposeResetPassword),
	})

	if s.cfg.ExposeResetToken {
		res.Token = raw
	}
	return res, nil
}

func (s *AuthService) ResetPasswordWithToken(ctx context.Context, token, password, confirm string) error {
	verr := &domain.ValidationError{}
	s.checkPasswords(verr, password, confirm)
	if err := verr.OrNil(); err != nil {
		return err
	}

	userID, err := s.consume(ctx, domain.PurposeResetPassword, token)
	if err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("reset password: %w", err)
	}

	return s.setPassword(ctx, userID, password)
}

func (s *AuthService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	user, err := s.repo.FindByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if compareHash([]byte(user.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	verr := &domain.ValidationError{}
	s.checkPasswords(verr, in.Password, in.Confirm)
	if err := verr.OrNil(); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, in.Password)
}

// AssignRoles replaces an official's role tags. It is the server half of the
// role-setup flow.
func (s *AuthService) AssignRoles(ctx context.Context, userID string, roles []string) (*domain.Principal, error) {
	for _, r := range roles {
		if !domain.IsOfficialRole(r) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, r)
		}
	}
	roles = domain.NormalizeOfficialRoles(roles)

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.UserType != domain.UserTypeOfficial {
		return nil, domain.ErrNotOfficial
	}

	if err := s.repo.SetRoles(ctx, user.ID, roles); err != nil {
		return nil, fmt.Errorf("assign roles: %w", err)
	}
	user.Roles = roles

	// Tokens carry the role set; the holder signs in again to pick up the new one.
	if err := s.tokens.RevokeUser(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("tokens with stale roles not revoked")
	}

	s.log.Info().Str("user_id", user.ID).Strs("roles", roles).Msg("roles assigned")
	return user.Principal(), nil
}

// BootstrapSuperOfficial promotes the configured official at startup when
// the account already exists and is verified. A missing or unverified
// account is promoted later, by VerifyEmail.
func (s *AuthService) BootstrapSuperOfficial(ctx context.Context) error {
	email := normalizeEmail(s.cfg.BootstrapSuperOfficial)
	if email == "" {
		return nil
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Info().Str("email", email).Msg("bootstrap super official not registered yet")
			return nil
		}
		return fmt.Errorf("bootstrap super official: %w", err)
	}
	if user.UserType != domain.UserTypeOfficial {
		return fmt.Errorf("bootstrap super official %s: %w", email, domain.ErrNotOfficial)
	}
	if !user.Verified {
		s.log.Info().Str("email", email).Msg("bootstrap super official promoted once verified")
		return nil
	}
	if _, err := s.promoteBootstrap(ctx, user); err != nil {
		return fmt.Errorf("bootstrap super official: %w", err)
	}
	return nil
}

// promoteBootstrap adds super_official to user when it is the verified
// bootstrap official and does not hold the role yet.
func (s *AuthService) promoteBootstrap(ctx context.Context, user *domain.User) (bool, error) {
	email := normalizeEmail(s.cfg.BootstrapSuperOfficial)
	if email == "" || user.Email != email || user.UserType != domain.UserTypeOfficial || !user.Verified {
		return false, nil
	}
	if domain.ContainsRole(user.Roles, domain.RoleSuperOfficial) {
		return false, nil
	}

	roles := domain.NormalizeOfficialRoles(append(append([]string(nil), user.Roles...), domain.RoleSuperOfficial))
	if err := s.repo.SetRoles(ctx, user.ID, roles); err != nil {
		return false, err
	}
	user.Roles = roles
	if err := s.tokens.RevokeUser(ctx, user.ID); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("tokens with stale roles not revoked")
	}
	s.log.Info().Str("user_id", user.ID).Msg("bootstrap super official promoted")
	return true, nil
}

func (s *AuthService) issueVerification(ctx context.Context, user *domain.User) error {
	raw, err := s.issue(ctx, domain.PurposeVerifyEmail, user.ID)
	if err != nil {
		return err
	}
	s.mail.Enqueue(ports.MailMessage{
		To:      user.Email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address within 24 hours by opening:\n\n%s\n",
			user.DisplayName(), s.link("/verify-email", raw)),
		Kind: string(domain.PurposeVerifyEmail),
	})
	return nil
}

func (s *AuthService) issue(ctx context.Context, purpose domain.TokenPurpose, userID string) (string, error) {
	raw, hash, err := newOneTimeToken()
	if err != nil {
		return "", err
	}
	if err := s.otp.Save(ctx, purpose, hash, userID, purpose.TTL()); err != nil {
		return "", fmt.Errorf("save %s token: %w", purpose, err)
	}
	return raw, nil
}

func (s *AuthService) consume(ctx context.Context, purpose domain.TokenPurpose, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidToken
	}
	userID, err := s.otp.Consume(ctx, purpose, HashToken(raw))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return "", err
		}
		return "", fmt.Errorf("consume %s token: %w", purpose, err)
	}
	return userID, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	// The password is already changed, so a failure here is logged rather
	// than reported as a failed change.
	if err := s.tokens.RevokeUser(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("tokens issued before password change not revoked")
	}
	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *AuthService) checkPasswords(verr *domain.ValidationError, password, confirm string) {
	if password == "" {
		verr.Add("password", "password is required")
		return
	}
	if err := s.cfg.Policy.Check(password); err != nil {
		verr.Add("password", err.Error())
	}
	if password != confirm {
		verr.Add("confirmPassword", domain.ErrPasswordMismatch.Error())
	}
}

func (s *AuthService) link(path, token string) string {
	base := strings.TrimRight(s.cfg.FrontendURL, "/")
	return base + path + "?token=" + url.QueryEscape(token)
}

func requireField(verr *domain.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, field+" is required")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
