package port

import (
	"context"
	"io"
)

// UploadInput describes an original invoice document to store.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	// Metadata is stored with the object as user metadata (x-amz-meta-*).
	Metadata map[string]string
}

// UploadOutput contains the result of a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage keeps the original documents invoices were extracted from, so that queued
// retries can re-read them and clients can download them.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	// GetPresignedURL returns a time-limited GET URL for the object.
	GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}
