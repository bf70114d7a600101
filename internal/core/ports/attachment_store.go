package ports

import (
	"context"
	"io"
)

// Attachment is a file uploaded with a registration form.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentStore persists uploaded files and returns the key they were
// stored under.
type AttachmentStore interface {
	Put(ctx context.Context, a Attachment) (string, error)
}
