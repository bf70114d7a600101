package domain

import "time"

// TokenPurpose scopes a one-time token to the flow that issued it.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

// TTL returns how long a token of this purpose stays exchangeable.
func (p TokenPurpose) TTL() time.Duration {
	switch p {
	case PurposeResetPassword:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
