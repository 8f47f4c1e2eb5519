// Package source loads statement files from local disk or Cloud Storage and
// archives imported uploads.
package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStorage provides the object operations used for imports.
// This interface enables mocking and testing of storage functionality.
type ObjectStorage interface {
	// Upload writes r to bucket/object.
	Upload(ctx context.Context, bucket, object string, r io.Reader) error

	// Download reads the bytes of bucket/object.
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCS is the Cloud Storage implementation of ObjectStorage. It holds a shared
// client and assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
}

var _ ObjectStorage = (*GCS)(nil)

// NewGCS creates a GCS backed by a new storage client.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: copy to gs://%s/%s: %w", bucket, object, err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (g *GCS) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Download: reading bytes: %w", err)
	}
	return data, nil
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, "gs://")
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("ParseGCSURI: invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseGCSURI: invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a gs:// URI or local path.
// e.g., "gs://bucket/folder/statement.csv" -> "statement.csv"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	if IsGCSURI(uri) {
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		trimmed = parts[1]
	}
	return path.Base(strings.ReplaceAll(trimmed, "\\", "/"))
}
