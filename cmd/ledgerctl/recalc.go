package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bookkeeping/internal/services"

	"github.com/google/subcommands"
)

type recalcCmd struct {
	user  string
	party string
}

func (*recalcCmd) Name() string     { return "recalc" }
func (*recalcCmd) Synopsis() string { return "replay stored running balances" }
func (*recalcCmd) Usage() string {
	return `ledgerctl recalc [-user <id>] [-party <name>]

  Replays the running balance of one party, of every party of one user, or of every party
  of every user when no flag is given.
`
}

func (c *recalcCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "restrict to one user id")
	f.StringVar(&c.party, "party", "", "restrict to one party (requires -user)")
}

func (c *recalcCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.party != "" && c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -party requires -user")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	users := []string{c.user}
	if c.user == "" {
		if users, err = e.users.ListIDs(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	failed := 0
	for _, userID := range users {
		parties := []string{c.party}
		if c.party == "" {
			if parties, err = e.parties.Names(ctx, userID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: user %s: %v\n", userID, err)
				failed++
				continue
			}
		}
		for _, party := range parties {
			result, err := e.ledger.Recalculate(ctx, userID, party)
			printRecalc(userID, result)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s/%s: %v\n", userID, party, err)
				failed++
			}
		}
	}
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printRecalc(userID string, result services.RecalcResult) {
	fmt.Printf("%s\t%s\tscanned=%d updated=%d failed=%d closing=%s\n",
		userID, result.Party, result.Scanned, result.Updated, result.Failed, result.ClosingBalance.StringFixed(2))
}
