package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// runCheck classifies one transaction against the store without importing it.
func runCheck(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	date := fs.String("date", "", "Transaction date, YYYY-MM-DD")
	postDate := fs.String("post-date", "", "Post date, YYYY-MM-DD (default: transaction date)")
	description := fs.String("description", "", "Description as it appears on the statement")
	amount := fs.String("amount", "", "Signed amount, e.g. -4.50")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == "" || *description == "" || *amount == "" {
		return errors.New("check: -date, -description and -amount are required")
	}

	in := domain.Transaction{Description: *description}
	var err error
	if in.TransactionDate, err = civil.ParseDate(*date); err != nil {
		return fmt.Errorf("check: date: %w", err)
	}
	if *postDate != "" {
		if in.PostDate, err = civil.ParseDate(*postDate); err != nil {
			return fmt.Errorf("check: post date: %w", err)
		}
	}
	if in.Amount, err = decimal.NewFromString(*amount); err != nil {
		return fmt.Errorf("check: amount: %w", err)
	}
	t, err := domain.NewTransaction(in)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}
	c, err := svc.Importer.Resolver().Check(ctx, t)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out, "%s: %s\n", c.Result.Classification, t)
	printMatches(env.out, "matches", c.Result.Matches)
	printMatches(env.out, "near", c.NearMatches)
	return nil
}
