package infra

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	return cfg
}

func TestOpenServices_Memory(t *testing.T) {
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))
	cfg := testConfig(t, map[string]string{"STORE_DRIVER": "memory"})

	svc, err := OpenServices(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenServices() error: %v", err)
	}
	defer svc.Close()

	path := filepath.Join(t.TempDir(), "jan.csv")
	csv := "Date,Description,Amount\n01/15/2024,SHELL OIL 123,-40.10\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Importer.ImportURI(ctx, path, pipeline.ImportOptions{AutoCategorize: true})
	if err != nil {
		t.Fatalf("ImportURI() error: %v", err)
	}
	if report.Inserted != 1 || report.Categorized != 1 {
		t.Errorf("report = %+v", report)
	}

	cats, err := svc.Ledger.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0] != "Gas" {
		t.Errorf("categories = %v, want [Gas]", cats)
	}
}

func TestOpenServices_SQLiteKeepsHierarchy(t *testing.T) {
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))
	cfg := testConfig(t, map[string]string{
		"STORE_DRIVER": "sqlite",
		"DATABASE_DSN": filepath.Join(t.TempDir(), "ledger.db"),
	})

	svc, err := OpenServices(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenServices() error: %v", err)
	}
	if _, err := svc.Ledger.AddEdge(ctx, "Dining", "Food"); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	reopened, err := OpenServices(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenServices() reopen error: %v", err)
	}
	defer reopened.Close()

	if level, ok := reopened.Ledger.Level("Dining"); !ok || level != 1 {
		t.Errorf("Level(Dining) = %d, %v", level, ok)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := &config.Config{StoreDriver: "oracle"}
	if _, err := OpenStore(context.Background(), cfg); err == nil {
		t.Error("OpenStore() expected error")
	}
}
