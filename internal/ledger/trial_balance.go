package ledger

import (
	"sort"
	"strings"
	"time"

	"bookkeeping/internal/models"

	"github.com/shopspring/decimal"
)

// TrialFilter narrows a trial balance. Zero values mean "no restriction".
type TrialFilter struct {
	Party   string
	AsOf    *time.Time
	Company string
}

type TrialLine struct {
	Party  string          `json:"party"`
	Amount decimal.Decimal `json:"amount"`
}

type TrialBalance struct {
	Credit      []TrialLine     `json:"credit"`
	Debit       []TrialLine     `json:"debit"`
	CreditTotal decimal.Decimal `json:"credit_total"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	Difference  decimal.Decimal `json:"difference"`
	Balanced    bool            `json:"balanced"`
	Excluded    int             `json:"excluded"`
}

// ComputeTrialBalance groups all of a user's rows by their effective party and splits the
// non-zero closing balances into a credit side and a debit side.
//
// A row takes part when it is open, belongs to a registered party or a virtual category,
// and is not an internal transfer. Open settlement markers take part as the net of the
// settled rows they stand for; settled rows themselves never do, so a settled party shows
// only its post-settlement net.
func ComputeTrialBalance(entries []models.LedgerEntry, registered []string, filter TrialFilter) TrialBalance {
	known := make(map[string]struct{}, len(registered))
	for _, name := range registered {
		known[normalize(name)] = struct{}{}
	}
	company := strings.TrimSpace(filter.Company)

	type totals struct {
		credit decimal.Decimal
		debit  decimal.Decimal
	}
	groups := map[string]*totals{}
	order := []string{}
	excluded := 0
	for _, entry := range entries {
		if !admitted(entry, known) || entry.IsOldRecord || IsInternalTransfer(entry, company) {
			excluded++
			continue
		}
		if filter.AsOf != nil && entry.Date.After(*filter.AsOf) {
			excluded++
			continue
		}
		key := GroupKey(entry, company)
		group, ok := groups[key]
		if !ok {
			group = &totals{credit: decimal.Zero, debit: decimal.Zero}
			groups[key] = group
			order = append(order, key)
		}
		if entry.Direction == models.Debit {
			group.debit = group.debit.Add(entry.Debit)
		} else {
			group.credit = group.credit.Add(entry.Credit)
		}
	}

	report := TrialBalance{
		Credit:      []TrialLine{},
		Debit:       []TrialLine{},
		CreditTotal: decimal.Zero,
		DebitTotal:  decimal.Zero,
		Excluded:    excluded,
	}
	for _, key := range order {
		if filter.Party != "" && normalize(key) != normalize(filter.Party) {
			continue
		}
		closing := groups[key].credit.Sub(groups[key].debit)
		switch {
		case closing.IsPositive():
			report.Credit = append(report.Credit, TrialLine{Party: key, Amount: closing})
			report.CreditTotal = report.CreditTotal.Add(closing)
		case closing.IsNegative():
			report.Debit = append(report.Debit, TrialLine{Party: key, Amount: closing.Abs()})
			report.DebitTotal = report.DebitTotal.Add(closing.Abs())
		}
	}
	sortLines(report.Credit)
	sortLines(report.Debit)
	report.Difference = report.CreditTotal.Sub(report.DebitTotal)
	report.Balanced = report.Difference.IsZero()
	return report
}

func admitted(entry models.LedgerEntry, known map[string]struct{}) bool {
	if entry.Kind == models.KindVirtual {
		return true
	}
	_, ok := known[normalize(entry.PartyName)]
	return ok
}

func sortLines(lines []TrialLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Amount.Equal(lines[j].Amount) {
			return lines[i].Amount.GreaterThan(lines[j].Amount)
		}
		return lines[i].Party < lines[j].Party
	})
}
