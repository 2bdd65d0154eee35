// Package storage archives generated documents, such as order receipts, in
// S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL is a time-limited download link for an archived object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService defines the object storage operations used by the notification module.
type StorageService interface {
	// PutObject stores reader under key and returns the key.
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) (string, error)

	// GenerateDownloadURL creates a presigned URL for downloading an object.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}
