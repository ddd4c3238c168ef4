package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookkeeping/internal/errs"
	"bookkeeping/internal/events"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/metrics"
	"bookkeeping/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var errNothingToSettle = errors.New("nothing to settle")

type PartySettlement struct {
	Party    string          `json:"party"`
	MarkerID string          `json:"marker_id,omitempty"`
	Settled  int             `json:"settled"`
	Net      decimal.Decimal `json:"net"`
	Recalc   RecalcResult    `json:"recalc"`
}

type SettleResult struct {
	SettledCount int               `json:"settled_count"`
	Parties      []PartySettlement `json:"parties"`
	Failed       []string          `json:"failed,omitempty"`
}

// Settle closes the book of each named party. Every party settles in its own transaction,
// so one failure leaves the others settled; failures come back as a PartialFailure next to
// the successful results.
func (s *LedgerService) Settle(ctx context.Context, userID string, parties []string) (SettleResult, error) {
	result := SettleResult{Parties: []PartySettlement{}}
	names := make([]string, 0, len(parties))
	seen := map[string]struct{}{}
	for _, raw := range trimNames(parties) {
		name, kind, _, err := s.resolveParty(ctx, userID, raw, models.CategoryNone)
		if err != nil {
			return result, err
		}
		if kind != models.KindOrdinary {
			return result, errs.Invalid("party", "virtual categories cannot be settled")
		}
		key := ledger.NormalizeName(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return result, errs.Invalid("parties", "at least one party is required")
	}

	failure := &errs.PartialFailure{Op: "settle", Attempted: len(names)}
	for _, name := range names {
		settled, err := s.settleParty(ctx, userID, name)
		var stale *errs.PartialFailure
		if errors.As(err, &stale) {
			// Settled, but the replay after commit failed.
			metrics.Settlements.WithLabelValues("settle", "ok").Inc()
			failure.Failed++
			failure.Causes = append(failure.Causes, stale.Causes...)
			result.SettledCount += settled.Settled
			result.Parties = append(result.Parties, settled)
			continue
		}
		if err != nil {
			metrics.Settlements.WithLabelValues("settle", "failed").Inc()
			s.logger.Error("settlement failed", "user_id", userID, "party", name, "error", err)
			failure.Failed++
			failure.Causes = append(failure.Causes, fmt.Sprintf("%s: %v", name, err))
			result.Failed = append(result.Failed, name)
			continue
		}
		metrics.Settlements.WithLabelValues("settle", "ok").Inc()
		result.SettledCount += settled.Settled
		result.Parties = append(result.Parties, settled)
	}
	if failure.Failed > 0 {
		return result, failure
	}
	return result, nil
}

func (s *LedgerService) settleParty(ctx context.Context, userID, party string) (PartySettlement, error) {
	unlock := s.lockParties(userID, party)
	defer unlock()

	now := s.now().Truncate(time.Microsecond)
	markerID := s.newID()
	var plan ledger.SettlementPlan
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockParty(ctx, tx, userID, party); err != nil {
			return err
		}
		open, err := s.entries.ListOpenForUpdate(ctx, tx, userID, party)
		if err != nil {
			return err
		}
		var ok bool
		plan, ok = ledger.PlanSettlement(userID, party, markerID, open, now)
		if !ok {
			return errNothingToSettle
		}
		marked, err := s.entries.MarkSettled(ctx, tx, plan.Absorbed, now)
		if err != nil {
			return err
		}
		if int(marked) != len(plan.Absorbed) {
			return errs.Conflict("open entries changed during settlement")
		}
		if err := s.entries.Create(ctx, tx, plan.Marker); err != nil {
			return err
		}
		if err := s.entries.SetSettlementRef(ctx, tx, plan.Absorbed, plan.Marker.ID); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "settle", "ledger_entry", plan.Marker.ID, map[string]any{
			"party":    party,
			"absorbed": plan.Absorbed,
			"net":      plan.Net,
		})
	})
	if errors.Is(err, errNothingToSettle) {
		return PartySettlement{Party: party, Net: decimal.Zero}, nil
	}
	if err != nil {
		return PartySettlement{}, err
	}

	recalc, _, err := s.recalcCommitted(ctx, userID, party, events.ReasonSettled)
	return PartySettlement{
		Party:    party,
		MarkerID: plan.Marker.ID,
		Settled:  len(plan.Absorbed),
		Net:      plan.Net,
		Recalc:   recalc,
	}, err
}

type UnsettleResult struct {
	MarkerID       string                     `json:"marker_id"`
	Party          string                     `json:"party"`
	UnsettledCount int                        `json:"unsettled_count"`
	Warning        *errs.InconsistencyWarning `json:"warning,omitempty"`
	Recalc         RecalcResult               `json:"recalc"`
}

// Unsettle reverses exactly one settlement. Markers it had absorbed become open again, but
// the rows those markers absorbed stay settled under them.
//
// After the marker is gone the party is re-scanned for settled rows still tied to it, either
// by reference or, for rows that never received one, by the settlement instant. Those are
// reopened as well and reported as an InconsistencyWarning.
func (s *LedgerService) Unsettle(ctx context.Context, userID, markerID string) (UnsettleResult, error) {
	marker, err := s.entries.GetByID(ctx, userID, markerID)
	if err != nil {
		return UnsettleResult{}, notFoundOr(err, "entry", markerID)
	}
	if !marker.IsSettlementMarker() {
		return UnsettleResult{}, errs.Invalid("marker_id", "entry is not a settlement marker")
	}
	if marker.IsOldRecord {
		return UnsettleResult{}, errs.Conflict("settlement was absorbed by a later settlement; unsettle that one first")
	}
	result := UnsettleResult{MarkerID: marker.ID, Party: marker.PartyName}

	unlock := s.lockParties(userID, marker.PartyName)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result.UnsettledCount, result.Warning = 0, nil
		if err := s.entries.LockParty(ctx, tx, userID, marker.PartyName); err != nil {
			return err
		}
		absorbed, err := s.entries.ListAbsorbed(ctx, tx, userID, marker.ID)
		if err != nil {
			return err
		}
		var rows, markers []string
		for _, entry := range absorbed {
			if !entry.IsOldRecord {
				continue
			}
			if entry.IsSettlementMarker() {
				markers = append(markers, entry.ID)
			} else {
				rows = append(rows, entry.ID)
			}
		}
		reopened, err := s.entries.Reopen(ctx, tx, rows)
		if err != nil {
			return err
		}
		if _, err := s.entries.Reopen(ctx, tx, markers); err != nil {
			return err
		}
		deleted, err := s.entries.DeleteMarker(ctx, tx, userID, marker.ID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return errs.NotFound("entry", marker.ID)
		}

		orphans, err := s.entries.ListOrphans(ctx, tx, userID, marker.PartyName, marker.ID, marker.CreatedAt)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			ids := make([]string, 0, len(orphans))
			for _, orphan := range orphans {
				ids = append(ids, orphan.ID)
			}
			repaired, err := s.entries.Reopen(ctx, tx, ids)
			if err != nil {
				return err
			}
			reopened += repaired
			result.Warning = &errs.InconsistencyWarning{MarkerID: marker.ID, Repaired: int(repaired)}
		}
		result.UnsettledCount = int(reopened)
		return s.logAudit(ctx, tx, userID, "unsettle", "ledger_entry", marker.ID, map[string]any{
			"party":     marker.PartyName,
			"reopened":  rows,
			"markers":   markers,
			"unsettled": reopened,
		})
	})
	if err != nil {
		metrics.Settlements.WithLabelValues("unsettle", "failed").Inc()
		return UnsettleResult{}, err
	}
	metrics.Settlements.WithLabelValues("unsettle", "ok").Inc()
	if result.Warning != nil {
		metrics.OrphansRepaired.Add(float64(result.Warning.Repaired))
		s.logger.Warn("orphaned settled entries reopened", "user_id", userID, "party", marker.PartyName, "marker_id", marker.ID, "count", result.Warning.Repaired)
	}

	result.Recalc, _, err = s.recalcCommitted(ctx, userID, marker.PartyName, events.ReasonUnsettled)
	return result, err
}

type SettlementSummary struct {
	Marker   models.LedgerEntry `json:"marker"`
	Absorbed int                `json:"absorbed"`
	Open     bool               `json:"open"`
}

func (s *LedgerService) ListSettlements(ctx context.Context, userID, party string) ([]SettlementSummary, error) {
	view, err := s.GetPartyLedger(ctx, userID, party)
	if err != nil {
		return nil, err
	}
	entries := append(append([]models.LedgerEntry{}, view.Open...), view.Settled...)
	ledger.SortCanonical(entries)
	counts := map[string]int{}
	for _, entry := range entries {
		if entry.SettlementRef != nil {
			counts[*entry.SettlementRef]++
		}
	}
	summaries := []SettlementSummary{}
	for _, entry := range entries {
		if !entry.IsSettlementMarker() {
			continue
		}
		summaries = append(summaries, SettlementSummary{Marker: entry, Absorbed: counts[entry.ID], Open: !entry.IsOldRecord})
	}
	return summaries, nil
}

func trimNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
