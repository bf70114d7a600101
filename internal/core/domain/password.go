package domain

import (
	"fmt"
	"unicode"
)

// DefaultPasswordMinLength is used when a policy is built with a zero length.
const DefaultPasswordMinLength = 8

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordPolicy is the single password rule shared by every registration,
// reset and change path, on both the server and the client.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy with the default minimum length.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength}
}

// Check returns ErrWeakPassword wrapped with the first unmet requirement.
func (p PasswordPolicy) Check(password string) error {
	min := p.MinLength
	if min <= 0 {
		min = DefaultPasswordMinLength
	}
	if len([]rune(password)) < min {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, min)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakPassword, MaxPasswordBytes)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: must contain an upper-case letter", ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: must contain a lower-case letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case !symbol:
		return fmt.Errorf("%w: must contain a symbol", ErrWeakPassword)
	}
	return nil
}
