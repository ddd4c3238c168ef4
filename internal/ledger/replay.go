// Package ledger holds the pure bookkeeping rules of the party ledger: canonical ordering,
// running-balance replay, entry classification, settlement planning and the trial balance.
// Nothing here performs I/O.
package ledger

import (
	"sort"

	"bookkeeping/internal/models"

	"github.com/shopspring/decimal"
)

// SortCanonical orders entries by business date, then creation time. The id is a last
// resort so that two rows created in the same instant still replay deterministically.
func SortCanonical(entries []models.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Before(entries[i], entries[j])
	})
}

func Before(a, b models.LedgerEntry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Step is the replayed balance of one entry.
type Step struct {
	EntryID  string
	Previous decimal.Decimal
	Balance  decimal.Decimal
}

func (s Step) Changed() bool {
	return !s.Previous.Equal(s.Balance)
}

// Replay walks every entry of one party in canonical order and derives its running
// balance. Settlement markers never move the running total and always carry a zero
// balance. Settled rows keep contributing, so closing balances survive a settlement.
// The input slice is sorted in place.
func Replay(entries []models.LedgerEntry) []Step {
	SortCanonical(entries)
	steps := make([]Step, 0, len(entries))
	running := decimal.Zero
	for _, entry := range entries {
		if entry.IsSettlementMarker() {
			steps = append(steps, Step{EntryID: entry.ID, Previous: entry.Balance, Balance: decimal.Zero})
			continue
		}
		running = running.Add(entry.Signed())
		steps = append(steps, Step{EntryID: entry.ID, Previous: entry.Balance, Balance: running})
	}
	return steps
}

// ClosingBalance is the party's economic balance seen through the open view: open
// ordinary entries plus the nets carried forward by open settlement markers.
func ClosingBalance(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.IsOldRecord {
			continue
		}
		total = total.Add(entry.Signed())
	}
	return total
}

// CarriedForward sums the open settlement markers of a party.
func CarriedForward(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.IsOldRecord || !entry.IsSettlementMarker() {
			continue
		}
		total = total.Add(entry.Signed())
	}
	return total
}

// StoredClosing returns the balance stored on the last non-marker entry in canonical order.
func StoredClosing(entries []models.LedgerEntry) decimal.Decimal {
	sorted := make([]models.LedgerEntry, len(entries))
	copy(sorted, entries)
	SortCanonical(sorted)
	for i := len(sorted) - 1; i >= 0; i-- {
		if !sorted[i].IsSettlementMarker() {
			return sorted[i].Balance
		}
	}
	return decimal.Zero
}

// Split separates a party's rows into the open view and the settled history, both in
// canonical order.
func Split(entries []models.LedgerEntry) (open, settled []models.LedgerEntry) {
	sorted := make([]models.LedgerEntry, len(entries))
	copy(sorted, entries)
	SortCanonical(sorted)
	open = make([]models.LedgerEntry, 0, len(sorted))
	settled = make([]models.LedgerEntry, 0)
	for _, entry := range sorted {
		if entry.IsOldRecord {
			settled = append(settled, entry)
			continue
		}
		open = append(open, entry)
	}
	return open, settled
}
