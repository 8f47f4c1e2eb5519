package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
)

func runExport(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "Output file (default stdout)")
	from := fs.String("from", "", "First transaction date, YYYY-MM-DD")
	to := fs.String("to", "", "Last transaction date, YYYY-MM-DD")
	category := fs.String("category", "", "Comma-separated categories to export")
	if err := fs.Parse(args); err != nil {
		return err
	}

	criteria, err := buildCriteria("", *category, *from, *to)
	if err != nil {
		return err
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}
	all, err := svc.Store.AllRecords(ctx)
	if err != nil {
		return err
	}

	txs := all
	if !criteria.IsEmpty() {
		txs = nil
		for _, t := range all {
			if criteria.Matches(t) {
				txs = append(txs, t)
			}
		}
	}

	data, err := json.MarshalIndent(domain.NewDocument(txs, time.Now()), "", "  ")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if *output == "" {
		fmt.Fprintln(env.out, string(data))
		return nil
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(env.out, "Exported %d transactions to %s\n", len(txs), *output)
	return nil
}

func runImportJSON(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("import-json", flag.ContinueOnError)
	policyName := fs.String("policy", string(env.cfg.ImportPolicy), "Duplicate policy: skip, force or review")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import-json: expected one file argument")
	}
	policy, err := dedup.ParsePolicy(*policyName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("import-json: %w", err)
	}
	txs, summary, err := domain.DecodeDocument(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Records: %d valid, %d invalid\n", summary.Valid, summary.Invalid)
	if len(txs) == 0 {
		return nil
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}

	analysis, err := svc.Importer.Resolver().Analyze(ctx, txs)
	if err != nil {
		return err
	}
	var decide dedup.Decider
	if policy == dedup.PolicyReview {
		decide = newPromptDecider(env.in, env.out)
	}
	selection, err := dedup.Select(ctx, analysis, policy, decide)
	if err != nil {
		return err
	}

	var ids []string
	if len(selection.Accepted) > 0 {
		ids, err = svc.Store.InsertBatch(ctx, selection.Accepted)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(env.out, "Inserted %d, skipped %d duplicates\n", len(ids), len(selection.Skipped))
	return nil
}

func runDelete(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	ids := fs.String("ids", "", "Comma-separated transaction ids")
	category := fs.String("category", "", "Comma-separated categories")
	from := fs.String("from", "", "First transaction date, YYYY-MM-DD")
	to := fs.String("to", "", "Last transaction date, YYYY-MM-DD")
	all := fs.Bool("all", false, "Delete every transaction")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	criteria, err := buildCriteria(*ids, *category, *from, *to)
	if err != nil {
		return err
	}
	if criteria.IsEmpty() && !*all {
		return errors.New("delete: give -ids, -category, -from/-to or -all")
	}

	if !*yes {
		ok, err := confirm(env, "Delete matching transactions?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(env.out, "Cancelled.")
			return nil
		}
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}

	var n int64
	switch {
	case *all:
		n, err = svc.Store.DeleteAll(ctx)
	case len(criteria.IDs) > 0 && len(criteria.Categories) == 0 && criteria.From == nil && criteria.To == nil:
		n, err = svc.Store.DeleteBatch(ctx, criteria.IDs)
	default:
		n, err = svc.Store.DeleteByCriteria(ctx, criteria)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Deleted %d transactions\n", n)
	return nil
}

func confirm(env *cliEnv, question string) (bool, error) {
	fmt.Fprintf(env.out, "%s [y/N] ", question)
	scanner := bufio.NewScanner(env.in)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

func buildCriteria(ids, categories, from, to string) (store.Criteria, error) {
	c := store.Criteria{
		IDs:        splitList(ids),
		Categories: splitList(categories),
	}
	if from != "" {
		d, err := civil.ParseDate(from)
		if err != nil {
			return c, fmt.Errorf("invalid -from date %q: %w", from, err)
		}
		c.From = &d
	}
	if to != "" {
		d, err := civil.ParseDate(to)
		if err != nil {
			return c, fmt.Errorf("invalid -to date %q: %w", to, err)
		}
		c.To = &d
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
