package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

type mockStorage struct {
	UploadFunc func(ctx context.Context, bucket, object string, r io.Reader) error
}

func (m *mockStorage) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	return m.UploadFunc(ctx, bucket, object, r)
}

func (m *mockStorage) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestUploadStatement(t *testing.T) {
	path := writeFile(t, "jan.csv", statement)

	var gotObject string
	var gotBody []byte
	storage := &mockStorage{UploadFunc: func(ctx context.Context, bucket, object string, r io.Reader) error {
		gotObject = object
		gotBody, _ = io.ReadAll(r)
		return nil
	}}

	uri, err := uploadStatement(context.Background(), storage, "statements", "", path)
	if err != nil {
		t.Fatalf("uploadStatement() error: %v", err)
	}
	if uri != "gs://statements/incoming/jan.csv" || gotObject != "incoming/jan.csv" {
		t.Errorf("uri = %q, object = %q", uri, gotObject)
	}
	if string(gotBody) != statement {
		t.Errorf("uploaded body = %q", gotBody)
	}
}

func TestUploadStatement_Errors(t *testing.T) {
	uploadErr := errors.New("quota exceeded")
	failing := &mockStorage{UploadFunc: func(ctx context.Context, bucket, object string, r io.Reader) error {
		return uploadErr
	}}
	unused := &mockStorage{UploadFunc: func(ctx context.Context, bucket, object string, r io.Reader) error {
		t.Error("upload should not be attempted")
		return nil
	}}

	tests := []struct {
		name    string
		storage *mockStorage
		content string
		wantErr error
	}{
		{name: "unknown format", storage: unused, content: "a,b\nc,d\n", wantErr: pipeline.ErrFormatNotDetected},
		{name: "upload failure", storage: failing, content: statement, wantErr: uploadErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "file.csv", tt.content)
			_, err := uploadStatement(context.Background(), tt.storage, "b", "custom/name.csv", path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
