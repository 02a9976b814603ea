package ports

import (
	"context"
	"io"
)

// Email is an outbound message rendered by the caller.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// MailQueue accepts emails for asynchronous delivery.
type MailQueue interface {
	Enqueue(email Email)
}

// ObjectStore stores uploaded images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageStore compresses and persists uploads, returning the stored keys.
type ImageStore interface {
	Save(ctx context.Context, folder string, uploads []Upload) ([]string, error)
	Remove(ctx context.Context, folder string, keys []string)
}

// RealtimeEmitter pushes an event to every live connection of a user.
type RealtimeEmitter interface {
	EmitToUser(userID, event string, data any)
}

// OTPThrottle limits how often a one-time code can be mailed to an address.
type OTPThrottle interface {
	Allow(ctx context.Context, email string) (bool, error)
}
