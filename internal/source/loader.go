package source

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoObjectStorage is returned when a gs:// URI is loaded without object storage.
var ErrNoObjectStorage = errors.New("no object storage configured")

// Loader reads statement files from local paths and gs:// URIs.
type Loader struct {
	storage ObjectStorage
}

// NewLoader creates a Loader. storage may be nil when only local files are read.
func NewLoader(storage ObjectStorage) *Loader {
	return &Loader{storage: storage}
}

// Load returns the bytes stored at uri.
func (l *Loader) Load(ctx context.Context, uri string) ([]byte, error) {
	if !IsGCSURI(uri) {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		return data, nil
	}

	if l.storage == nil {
		return nil, fmt.Errorf("Load: %s: %w", uri, ErrNoObjectStorage)
	}
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	data, err := l.storage.Download(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return data, nil
}
