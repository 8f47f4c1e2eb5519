package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/google/uuid"
)

// Archiver copies imported files into a bucket under
// imports/YYYY/MM/DD/<uuid>-<filename>.
type Archiver struct {
	storage ObjectStorage
	bucket  string
	now     func() time.Time
}

// NewArchiver creates an Archiver writing to bucket.
func NewArchiver(storage ObjectStorage, bucket string) *Archiver {
	return &Archiver{storage: storage, bucket: bucket, now: time.Now}
}

// ObjectName returns the archive object name for filename at t.
func ObjectName(t time.Time, id, filename string) string {
	filename = strings.TrimSpace(FilenameFromURI(filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = "statement.csv"
	}
	return fmt.Sprintf("imports/%s/%s-%s", t.UTC().Format("2006/01/02"), id, filename)
}

// Archive uploads data and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	object := ObjectName(a.now(), uuid.NewString(), filename)
	if err := a.storage.Upload(ctx, a.bucket, object, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, object)
	log := logger.FromContext(ctx)
	log.Info().
		Str("uri", uri).
		Int("bytes", len(data)).
		Msg("Archived statement file")
	return uri, nil
}
