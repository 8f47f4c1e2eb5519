package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// errReviewAborted is returned when the reviewer quits or input ends.
var errReviewAborted = errors.New("review aborted")

// newPromptDecider asks on out whether to import each ambiguous row and
// reads y/n/q answers from in.
func newPromptDecider(in io.Reader, out io.Writer) dedup.Decider {
	scanner := bufio.NewScanner(in)
	return func(ctx context.Context, c dedup.Candidate) (bool, error) {
		fmt.Fprintf(out, "\nRow %d (%s): %s\n", c.Index+1, c.Result.Classification, c.Transaction)
		printMatches(out, "matches", c.Result.Matches)
		printMatches(out, "near", c.NearMatches)

		for {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			fmt.Fprint(out, "Import this row? [y/n/q] ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return false, err
				}
				return false, errReviewAborted
			}
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "y", "yes":
				return true, nil
			case "n", "no", "":
				return false, nil
			case "q", "quit":
				return false, errReviewAborted
			}
		}
	}
}

func printMatches(out io.Writer, label string, txs []*domain.Transaction) {
	for _, t := range txs {
		fmt.Fprintf(out, "  %-8s %s\n", label+":", t)
	}
}
