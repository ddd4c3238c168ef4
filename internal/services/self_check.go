package services

import (
	"context"
	"sort"

	"bookkeeping/internal/ledger"
	"bookkeeping/internal/models"

	"github.com/shopspring/decimal"
)

type PartyDrift struct {
	Party     string          `json:"party"`
	StaleRows int             `json:"stale_rows"`
	Stored    decimal.Decimal `json:"stored_closing"`
	Expected  decimal.Decimal `json:"expected_closing"`
}

type SelfCheckReport struct {
	Parties int          `json:"parties"`
	Entries int          `json:"entries"`
	Drifted []PartyDrift `json:"drifted"`
}

// SelfCheck compares every stored balance with a fresh replay without writing anything.
func (s *LedgerService) SelfCheck(ctx context.Context, userID string) (SelfCheckReport, error) {
	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return SelfCheckReport{}, err
	}
	groups := map[string][]models.LedgerEntry{}
	names := map[string]string{}
	for _, entry := range entries {
		key := ledger.NormalizeName(entry.PartyName)
		if _, ok := names[key]; !ok {
			names[key] = entry.PartyName
		}
		groups[key] = append(groups[key], entry)
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	report := SelfCheckReport{Parties: len(groups), Entries: len(entries), Drifted: []PartyDrift{}}
	for _, key := range keys {
		rows := groups[key]
		stale := 0
		expected := decimal.Zero
		for _, step := range ledger.Replay(rows) {
			if step.Changed() {
				stale++
			}
		}
		for _, row := range rows {
			if !row.IsSettlementMarker() {
				expected = expected.Add(row.Signed())
			}
		}
		if stale == 0 {
			continue
		}
		report.Drifted = append(report.Drifted, PartyDrift{
			Party:     names[key],
			StaleRows: stale,
			Stored:    ledger.StoredClosing(rows),
			Expected:  expected,
		})
	}
	return report, nil
}
