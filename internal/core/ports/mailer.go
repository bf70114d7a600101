package ports

import "context"

// MailMessage is a plain-text email.
type MailMessage struct {
	To      string
	Subject string
	Body    string
	// Kind labels the message for metrics, e.g. "verify_email".
	Kind string
}

// Mailer delivers a message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailQueue accepts messages for asynchronous delivery.
type MailQueue interface {
	Enqueue(msg MailMessage)
}
