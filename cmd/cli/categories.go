package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-ledger/internal/store"
)

const categoriesUsage = `Usage: cli categories <subcommand> [args]

  list                         List categories in use
  stats                        Show per-category totals
  rename FROM TO               Move every transaction in FROM to TO
  merge TARGET SOURCE...       Move every transaction in SOURCE... to TARGET
  delete CATEGORY [REPLACE]    Move CATEGORY to REPLACE (default Uncategorized)
  edge add CHILD PARENT        Set the parent of CHILD
  edge remove CHILD            Detach CHILD from its parent
  path CATEGORY                Show the path from the root to CATEGORY
  tree                         Show the category hierarchy`

func runCategories(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(env.out, categoriesUsage)
		return errors.New("categories: subcommand required")
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}
	l := svc.Ledger

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		cats, err := l.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintln(env.out, c)
		}

	case "stats":
		stats, err := l.Stats(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Category\tCount\tExpenses\tIncome\tNet\t")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n", s.Category, s.TransactionCount,
				s.TotalExpenses.StringFixed(2), s.TotalIncome.StringFixed(2), s.NetAmount.StringFixed(2))
		}
		tw.Flush()

	case "rename":
		if len(rest) != 2 {
			return errors.New("categories rename: expected FROM TO")
		}
		n, err := l.Rename(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Renamed %q to %q: %d transactions updated\n", rest[0], rest[1], n)

	case "merge":
		if len(rest) < 2 {
			return errors.New("categories merge: expected TARGET SOURCE...")
		}
		n, err := l.Merge(ctx, rest[1:], rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Merged %s into %q: %d transactions updated\n", strings.Join(rest[1:], ", "), rest[0], n)

	case "delete":
		if len(rest) < 1 || len(rest) > 2 {
			return errors.New("categories delete: expected CATEGORY [REPLACEMENT]")
		}
		replacement := ""
		if len(rest) == 2 {
			replacement = rest[1]
		}
		n, err := l.Delete(ctx, rest[0], replacement)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Deleted %q: %d transactions updated\n", rest[0], n)

	case "edge":
		return runEdge(ctx, env, rest)

	case "path":
		if len(rest) != 1 {
			return errors.New("categories path: expected CATEGORY")
		}
		path := l.Path(rest[0])
		level, _ := l.Level(rest[0])
		fmt.Fprintf(env.out, "%s (level %d)\n", strings.Join(path, " > "), level)

	case "tree":
		printTree(env, svc.Ledger.Tree())

	default:
		fmt.Fprintln(env.out, categoriesUsage)
		return fmt.Errorf("categories: unknown subcommand %q", sub)
	}
	return nil
}

func runEdge(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 {
		return errors.New("categories edge: expected add or remove")
	}
	l := env.svc.Ledger

	switch args[0] {
	case "add":
		if len(args) != 3 {
			return errors.New("categories edge add: expected CHILD PARENT")
		}
		level, err := l.AddEdge(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "%s is now under %s (level %d)\n", args[1], args[2], level)
	case "remove":
		if len(args) != 2 {
			return errors.New("categories edge remove: expected CHILD")
		}
		ok, err := l.RemoveEdge(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("categories edge remove: %q has no parent", args[1])
		}
		fmt.Fprintf(env.out, "%s is now a root category\n", args[1])
	default:
		return fmt.Errorf("categories edge: unknown action %q", args[0])
	}
	return nil
}

func runSuggest(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	apply := fs.Bool("apply", false, "Write the suggested categories")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := env.services(ctx)
	if err != nil {
		return err
	}

	suggestions, err := svc.Ledger.SuggestCategories(ctx, svc.Categorizer)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(env.out, "No suggestions.")
		return nil
	}

	for _, s := range suggestions {
		fmt.Fprintf(env.out, "\n%s (%d)\n", s.Category, len(s.Transactions))
		for _, t := range s.Transactions {
			fmt.Fprintf(env.out, "  %s\n", t)
		}
	}

	if !*apply {
		fmt.Fprintln(env.out, "\nRun with -apply to update these transactions.")
		return nil
	}
	n, err := svc.Ledger.ApplySuggestions(ctx, suggestions)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "\nUpdated %d transactions.\n", n)
	return nil
}

func printTree(env *cliEnv, edges []store.CategoryEdge) {
	if len(edges) == 0 {
		fmt.Fprintln(env.out, "No category hierarchy defined.")
		return
	}
	children := make(map[string][]string)
	var roots []string
	for _, e := range edges {
		if e.Parent == "" {
			roots = append(roots, e.Category)
			continue
		}
		children[e.Parent] = append(children[e.Parent], e.Category)
	}

	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		fmt.Fprintf(env.out, "%s%s\n", strings.Repeat("  ", depth), name)
		for _, c := range children[name] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
}
