package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/source"
)

func runUpload(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	bucket := fs.String("bucket", env.cfg.GCSBucket, "GCS bucket name")
	object := fs.String("object", "", "GCS object name (defaults to incoming/<filename>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bucket == "" || fs.NArg() != 1 {
		return errors.New("usage: cli upload -bucket NAME FILE")
	}

	gcs, err := source.NewGCS(ctx)
	if err != nil {
		return err
	}
	defer gcs.Close()

	uri, err := uploadStatement(ctx, gcs, *bucket, *object, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Uploaded %s to %s\n", fs.Arg(0), uri)
	return nil
}

// uploadStatement copies a local statement to Cloud Storage after checking
// that its format is recognized, and returns the gs:// URI.
func uploadStatement(ctx context.Context, storage source.ObjectStorage, bucket, object, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("uploadStatement: %w", err)
	}
	if _, ok := formats.Detect(string(data)); !ok {
		return "", fmt.Errorf("uploadStatement: %s: %w", path, pipeline.ErrFormatNotDetected)
	}

	if object == "" {
		object = "incoming/" + filepath.Base(path)
	}
	if err := storage.Upload(ctx, bucket, object, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("uploadStatement: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, object), nil
}
