package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bookkeeping/internal/money"
	"bookkeeping/internal/services"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

type trialBalanceCmd struct {
	user    string
	party   string
	asOf    string
	company string
	raw     bool
}

func (*trialBalanceCmd) Name() string     { return "trial-balance" }
func (*trialBalanceCmd) Synopsis() string { return "print a user's trial balance" }
func (*trialBalanceCmd) Usage() string {
	return `ledgerctl trial-balance -user <id> [-party <name>] [-as-of <date>] [-company <name>] [-raw]

  Prints the credit and debit sides of the trial balance, always computed fresh.
`
}

func (c *trialBalanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "user id (required)")
	f.StringVar(&c.party, "party", "", "restrict to one party")
	f.StringVar(&c.asOf, "as-of", "", "ignore entries dated after this date")
	f.StringVar(&c.company, "company", "", "company name override")
	f.BoolVar(&c.raw, "raw", false, "print markdown without terminal styling")
}

func (c *trialBalanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	report, err := e.ledger.TrialBalance(ctx, services.TrialBalanceQuery{
		UserID:  c.user,
		Party:   c.party,
		AsOf:    c.asOf,
		Company: c.company,
		Fresh:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	md := trialBalanceMarkdown(report, e.cfg.Currency)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func trialBalanceMarkdown(report services.TrialBalanceReport, currency string) string {
	var b strings.Builder
	title := "Trial Balance"
	if report.Company != "" {
		title += " - " + report.Company
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "| Side | Party | Amount |\n|:---|:---|---:|\n")
	for _, line := range report.Credit {
		fmt.Fprintf(&b, "| Credit | %s | %s |\n", escapeCell(line.Party), money.Display(line.Amount, currency))
	}
	for _, line := range report.Debit {
		fmt.Fprintf(&b, "| Debit | %s | %s |\n", escapeCell(line.Party), money.Display(line.Amount, currency))
	}
	fmt.Fprintf(&b, "\n**Credit total:** %s  \n", money.Display(report.CreditTotal, currency))
	fmt.Fprintf(&b, "**Debit total:** %s  \n", money.Display(report.DebitTotal, currency))
	if report.Balanced {
		b.WriteString("**Balanced**\n")
	} else {
		fmt.Fprintf(&b, "**Difference:** %s\n", money.Display(report.Difference, currency))
	}
	return b.String()
}

func escapeCell(value string) string {
	return strings.ReplaceAll(value, "|", `\|`)
}

func printMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
