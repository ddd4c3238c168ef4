package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bookkeeping/internal/ledger"
	"bookkeeping/internal/models"
	"bookkeeping/internal/store"

	"github.com/google/subcommands"
)

type backfillCmd struct {
	batch  int
	dryRun bool
}

func (*backfillCmd) Name() string     { return "backfill-kinds" }
func (*backfillCmd) Synopsis() string { return "classify entries written before entry kinds existed" }
func (*backfillCmd) Usage() string {
	return `ledgerctl backfill-kinds [-batch n] [-dry-run]

  Assigns a kind and category to every entry that has none, using the legacy remark and
  party-name rules. New entries never need this.
`
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.batch, "batch", 500, "rows classified per round trip")
	f.BoolVar(&c.dryRun, "dry-run", false, "print the classification without writing it")
}

func (c *backfillCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.batch <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -batch must be positive")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	counts, err := backfill(ctx, e.entries, c.batch, c.dryRun)
	for kind, n := range counts {
		fmt.Printf("%-12s %d\n", kind, n)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type kindWriter interface {
	ListUnclassified(ctx context.Context, limit int) ([]store.UnclassifiedEntry, error)
	SetKind(ctx context.Context, id string, kind models.EntryKind, category models.Category) error
}

// backfill classifies until no unclassified row is left. A dry run reads one batch only,
// since nothing it reads ever leaves the unclassified set.
func backfill(ctx context.Context, entries kindWriter, batch int, dryRun bool) (map[string]int, error) {
	counts := map[string]int{}
	for {
		rows, err := entries.ListUnclassified(ctx, batch)
		if err != nil {
			return counts, err
		}
		for _, row := range rows {
			kind, category := ledger.ClassifyLegacy(row.PartyName, row.Remarks, row.CompanyName)
			label := string(kind)
			if category != models.CategoryNone {
				label += "/" + string(category)
			}
			counts[label]++
			if dryRun {
				fmt.Printf("%s\t%s\t%s\n", row.ID, row.PartyName, label)
				continue
			}
			if err := entries.SetKind(ctx, row.ID, kind, category); err != nil {
				return counts, fmt.Errorf("entry %s: %w", row.ID, err)
			}
		}
		if dryRun || len(rows) < batch {
			return counts, nil
		}
	}
}
