package storage

import (
	"context"
	"time"
)

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket string
	// KeyPrefix groups uploaded assets, e.g. "avatars" or "covers".
	KeyPrefix string
	// PublicBaseURL, when set, is used to build the returned URL instead of
	// the default virtual-hosted S3 form (useful behind a CDN).
	PublicBaseURL string
	ContentType   string
}

// Service stores media assets and hands back publicly reachable URLs.
type Service interface {
	// Upload stores the file at localPath and returns its public URL.
	Upload(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	Delete(ctx context.Context, bucket, key string) error
	// GetObjectURL presigns a time-limited URL for objects in private buckets.
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
