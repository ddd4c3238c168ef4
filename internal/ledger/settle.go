package ledger

import (
	"fmt"
	"time"

	"bookkeeping/internal/models"

	"github.com/shopspring/decimal"
)

// SettlementPlan is the outcome of rolling a party's open rows into one marker.
type SettlementPlan struct {
	Marker   models.LedgerEntry
	Absorbed []string
	Net      decimal.Decimal
}

// PlanSettlement builds the marker for the given open rows. Earlier markers that are still
// open are absorbed too, so settlements stack. ok is false when there is no open ordinary
// row left to absorb.
func PlanSettlement(userID, party, markerID string, open []models.LedgerEntry, now time.Time) (SettlementPlan, bool) {
	ordinary := 0
	net := decimal.Zero
	absorbed := make([]string, 0, len(open))
	for _, entry := range open {
		if entry.IsOldRecord {
			continue
		}
		if !entry.IsSettlementMarker() {
			ordinary++
		}
		net = net.Add(entry.Signed())
		absorbed = append(absorbed, entry.ID)
	}
	if ordinary == 0 {
		return SettlementPlan{}, false
	}
	marker := models.LedgerEntry{
		ID:        markerID,
		UserID:    userID,
		PartyName: party,
		Date:      truncateDay(now),
		CreatedAt: now,
		Credit:    decimal.Zero,
		Debit:     decimal.Zero,
		Balance:   decimal.Zero,
		Remarks:   SettlementRemarks(len(absorbed)),
		Kind:      models.KindSettlement,
		Category:  models.CategoryNone,
	}
	if net.IsNegative() {
		marker.Direction = models.Debit
		marker.Debit = net.Abs()
	} else {
		marker.Direction = models.Credit
		marker.Credit = net
	}
	return SettlementPlan{Marker: marker, Absorbed: absorbed, Net: net}, true
}

func SettlementRemarks(absorbed int) string {
	return fmt.Sprintf("%s (%d entries)", SettlementTag, absorbed)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
