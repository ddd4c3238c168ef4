package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookkeeping/internal/ledger"
	"bookkeeping/internal/models"
	"bookkeeping/internal/services"
	"bookkeeping/internal/store"

	"github.com/shopspring/decimal"
)

type memKinds struct {
	rows   []store.UnclassifiedEntry
	kinds  map[string]models.Category
	setErr error
}

func (m *memKinds) ListUnclassified(_ context.Context, limit int) ([]store.UnclassifiedEntry, error) {
	var out []store.UnclassifiedEntry
	for _, row := range m.rows {
		if _, done := m.kinds[row.ID]; done {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memKinds) SetKind(_ context.Context, id string, _ models.EntryKind, category models.Category) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.kinds[id] = category
	return nil
}

func legacyRows() []store.UnclassifiedEntry {
	return []store.UnclassifiedEntry{
		{ID: "1", PartyName: "Raj", Remarks: "cash"},
		{ID: "2", PartyName: "Raj", Remarks: "Monday Final Settlement (3 entries)"},
		{ID: "3", PartyName: "Acme Ltd", CompanyName: "Acme Ltd"},
		{ID: "4", PartyName: "Compton"},
		{ID: "5", PartyName: "Sita", Remarks: "commission paid"},
	}
}

func TestBackfillClassifiesEveryRow(t *testing.T) {
	entries := &memKinds{rows: legacyRows(), kinds: map[string]models.Category{}}
	counts, err := backfill(context.Background(), entries, 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries.kinds) != 5 {
		t.Fatalf("expected every row classified, got %d", len(entries.kinds))
	}
	if counts["ordinary"] != 2 || counts["settlement"] != 1 || counts["virtual/company"] != 1 || counts["virtual/commission"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if entries.kinds["3"] != models.CategoryCompany {
		t.Fatalf("company row misclassified: %v", entries.kinds["3"])
	}
}

func TestBackfillDryRunWritesNothing(t *testing.T) {
	entries := &memKinds{rows: legacyRows(), kinds: map[string]models.Category{}}
	counts, err := backfill(context.Background(), entries, 10, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries.kinds) != 0 {
		t.Fatalf("dry run wrote %d rows", len(entries.kinds))
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 5 {
		t.Fatalf("expected 5 rows counted, got %d", total)
	}
}

func TestBackfillStopsOnWriteError(t *testing.T) {
	entries := &memKinds{rows: legacyRows(), kinds: map[string]models.Category{}, setErr: errors.New("boom")}
	if _, err := backfill(context.Background(), entries, 2, false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTrialBalanceMarkdown(t *testing.T) {
	report := services.TrialBalanceReport{
		TrialBalance: ledger.TrialBalance{
			Credit:      []ledger.TrialLine{{Party: "Raj", Amount: decimal.NewFromInt(1000)}},
			Debit:       []ledger.TrialLine{{Party: "A|B", Amount: decimal.NewFromInt(1000)}},
			CreditTotal: decimal.NewFromInt(1000),
			DebitTotal:  decimal.NewFromInt(1000),
			Difference:  decimal.Zero,
			Balanced:    true,
		},
		Company: "Acme",
	}
	md := trialBalanceMarkdown(report, "USD")
	for _, want := range []string{"# Trial Balance - Acme", "| Credit | Raj | $1,000.00 |", `| Debit | A\|B | $1,000.00 |`, "**Balanced**"} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q in:\n%s", want, md)
		}
	}

	report.Balanced = false
	report.Difference = decimal.NewFromInt(5)
	if md := trialBalanceMarkdown(report, ""); !strings.Contains(md, "**Difference:** 5.00") {
		t.Fatalf("difference missing:\n%s", md)
	}
}

func TestSplitSQL(t *testing.T) {
	content := `-- +migrate Up
CREATE TABLE a (id int);
-- comment
CREATE INDEX a_idx
  ON a (id);
-- +migrate Down
DROP TABLE a;
`
	statements := splitSQL(upSection(content))
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if strings.Contains(strings.Join(statements, ""), "DROP") {
		t.Fatalf("down section must not run")
	}
	if !strings.Contains(statements[1], "ON a (id);") {
		t.Fatalf("multi-line statement split: %q", statements[1])
	}
}
