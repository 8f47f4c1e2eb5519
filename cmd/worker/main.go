package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/infra"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	listFile := flag.String("list", "", "File with one source path or gs:// URI per line")
	format := flag.String("format", "", "Statement format (default: detect per file)")
	policy := flag.String("policy", string(cfg.ImportPolicy), "Duplicate policy: skip or force")
	autoCategorize := flag.Bool("auto-categorize", false, "Fill placeholder categories during import")
	workers := flag.Int("workers", inmemory.DefaultWorkers, "Number of concurrent imports")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall time limit")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	uris := flag.Args()
	if *listFile != "" {
		listed, err := readList(*listFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read source list")
		}
		uris = append(uris, listed...)
	}
	if len(uris) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: worker [flags] <file|gs://bucket/object>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	p, err := dedup.ParsePolicy(*policy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid policy")
	}
	if p == dedup.PolicyReview {
		log.Fatal().Msg("Review policy needs a person; use the cli import command")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	svc, err := infra.OpenServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open services")
	}
	defer svc.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), jobStore, inmemory.WithWorkers(*workers))

	if err := jobQueue.Start(ctx, pipeline.NewJobHandler(svc.Importer, p)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("files", len(uris)).Int("workers", *workers).Msg("Worker started")

	ids := make([]string, 0, len(uris))
	for _, uri := range uris {
		job := &jobs.ImportFileJob{
			SourceURI:      uri,
			Format:         *format,
			Policy:         string(p),
			AutoCategorize: *autoCategorize,
		}
		if err := jobQueue.PublishImportFile(ctx, job); err != nil {
			log.Fatal().Err(err).Str("source_uri", uri).Msg("Failed to enqueue import")
		}
		ids = append(ids, job.JobID)
	}

	done, waitErr := jobs.WaitForJobs(ctx, jobStore, ids, 200*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	if waitErr != nil {
		log.Fatal().Err(waitErr).Msg("Imports did not finish")
	}

	failed := printSummary(done)
	if failed > 0 {
		os.Exit(1)
	}
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var uris []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris, scanner.Err()
}

// printSummary prints one line per job and returns the number of failures.
func printSummary(done []*jobs.ImportFileJob) int {
	var failed, inserted, duplicates int
	for _, job := range done {
		if job.Status == jobs.JobStatusFailed {
			failed++
			fmt.Printf("FAILED  %s: %s\n", job.SourceURI, job.Error)
			continue
		}
		r := job.Result
		if r == nil {
			r = &jobs.ImportResult{}
		}
		inserted += r.Inserted
		duplicates += r.Duplicates
		fmt.Printf("OK      %s: format=%s parsed=%d inserted=%d duplicates=%d errors=%d\n",
			job.SourceURI, r.Format, r.Parsed, r.Inserted, r.Duplicates, r.Errors)
	}
	fmt.Printf("\n%d files, %d failed, %d inserted, %d duplicates skipped\n", len(done), failed, inserted, duplicates)
	return failed
}
