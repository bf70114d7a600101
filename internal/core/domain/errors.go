package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrForbidden           = errors.New("access forbidden")
	ErrNotOfficial         = errors.New("user is not an official")
	ErrInvalidRole         = errors.New("invalid role")
	ErrAttachmentRejected  = errors.New("attachment rejected")
	ErrAttachmentsDisabled = errors.New("attachments are not enabled")
)
