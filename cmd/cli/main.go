package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/infra"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{"detect", "Detect the format of a CSV statement", runDetect},
	{"validate", "Check a CSV statement against a format", runValidate},
	{"preview", "Show the header and first rows of a CSV statement", runPreview},
	{"upload", "Upload a CSV statement to Cloud Storage", runUpload},
	{"import", "Import CSV statements into the store", runImport},
	{"check", "Check one transaction for duplicates in the store", runCheck},
	{"categories", "List, rename, merge, delete and organize categories", runCategories},
	{"suggest", "Suggest categories for uncategorized transactions", runSuggest},
	{"export", "Export transactions as JSON", runExport},
	{"import-json", "Import a JSON export", runImportJSON},
	{"delete", "Delete transactions", runDelete},
}

// cliEnv carries what every command needs. The store is opened on first use
// so format-only commands work without one.
type cliEnv struct {
	cfg *config.Config
	in  io.Reader
	out io.Writer

	svc *infra.Services
}

func (e *cliEnv) services(ctx context.Context) (*infra.Services, error) {
	if e.svc != nil {
		return e.svc, nil
	}
	svc, err := infra.OpenServices(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return svc, nil
}

func (e *cliEnv) close() {
	if e.svc != nil {
		e.svc.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(os.Stdout)
		return
	}

	cmd, ok := findCommand(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	env := &cliEnv{cfg: cfg, in: os.Stdin, out: os.Stdout}
	err = cmd.run(ctx, env, os.Args[2:])
	env.close()
	if err != nil {
		log.Fatal().Err(err).Str("command", name).Msg("Command failed")
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Statement Ledger CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "help", "Show this help message")
	fmt.Fprintln(w, "\nRun 'cli <command> -h' for more information on a command.")
}
