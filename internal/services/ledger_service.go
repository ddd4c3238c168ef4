package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"bookkeeping/internal/cache"
	"bookkeeping/internal/db"
	"bookkeeping/internal/errs"
	"bookkeeping/internal/events"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/lock"
	"bookkeeping/internal/metrics"
	"bookkeeping/internal/models"
	"bookkeeping/internal/store"

	"github.com/shopspring/decimal"
)

type EntryStore interface {
	Create(ctx context.Context, tx store.Execer, entry models.LedgerEntry) error
	GetByID(ctx context.Context, userID, id string) (models.LedgerEntry, error)
	ListByParty(ctx context.Context, userID, party string) ([]models.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string) ([]models.LedgerEntry, error)
	ListOpenForUpdate(ctx context.Context, tx store.Selecter, userID, party string) ([]models.LedgerEntry, error)
	Update(ctx context.Context, tx store.Execer, entry models.LedgerEntry) (int64, error)
	Delete(ctx context.Context, tx store.Execer, userID, id string) (int64, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	MarkSettled(ctx context.Context, tx store.Execer, ids []string, settledAt time.Time) (int64, error)
	SetSettlementRef(ctx context.Context, tx store.Execer, ids []string, markerID string) error
	ListAbsorbed(ctx context.Context, tx store.Selecter, userID, markerID string) ([]models.LedgerEntry, error)
	ListOrphans(ctx context.Context, tx store.Selecter, userID, party, markerID string, settledAt time.Time) ([]models.LedgerEntry, error)
	Reopen(ctx context.Context, tx store.Execer, ids []string) (int64, error)
	DeleteMarker(ctx context.Context, tx store.Execer, userID, markerID string) (int64, error)
	DeleteByParty(ctx context.Context, tx store.Execer, userID, party string) (int64, error)
	RenameParty(ctx context.Context, tx store.Execer, userID, from, to string) (int64, error)
	LockParty(ctx context.Context, tx store.Execer, userID, party string) error
}

type PartyStore interface {
	Create(ctx context.Context, tx store.Execer, party models.Party) error
	GetByName(ctx context.Context, userID, name string) (models.Party, error)
	GetByID(ctx context.Context, userID, id string) (models.Party, error)
	List(ctx context.Context, userID string) ([]models.Party, error)
	Names(ctx context.Context, userID string) ([]string, error)
	Update(ctx context.Context, tx store.Execer, party models.Party) (int64, error)
	Delete(ctx context.Context, tx store.Execer, userID, id string) (int64, error)
}

type UserStore interface {
	CompanyName(ctx context.Context, userID string) (string, error)
	UpdateCompanyName(ctx context.Context, tx store.Execer, userID, name string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.PartyMutated)
}

// LedgerService owns every mutation of a user's ledger. Writes to one (user, party) pair are
// serialised in-process, and settlement additionally takes a database advisory lock.
type LedgerService struct {
	txRunner db.TxRunner
	entries  EntryStore
	parties  PartyStore
	users    UserStore
	audit    AuditStore
	reports  cache.Cache
	events   Publisher
	locks    *lock.Keyed
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Deps struct {
	TxRunner db.TxRunner
	Entries  EntryStore
	Parties  PartyStore
	Users    UserStore
	Audit    AuditStore
	Reports  cache.Cache
	Events   Publisher
	Logger   *slog.Logger
}

func NewLedgerService(deps Deps) *LedgerService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		txRunner: deps.TxRunner,
		entries:  deps.Entries,
		parties:  deps.Parties,
		users:    deps.Users,
		audit:    deps.Audit,
		reports:  deps.Reports,
		events:   deps.Events,
		locks:    lock.NewKeyed(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newUUID,
	}
}

// RecalcResult reports one replay of a party. Failed rows keep their previous balance.
type RecalcResult struct {
	Party          string          `json:"party"`
	Scanned        int             `json:"scanned"`
	Updated        int             `json:"updated"`
	Failed         int             `json:"failed"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// Recalculate replays a party and rewrites every stale balance. It is the repair entry point;
// every mutation already runs the same pass.
func (s *LedgerService) Recalculate(ctx context.Context, userID, party string) (RecalcResult, error) {
	unlock := s.lockParties(userID, party)
	defer unlock()
	result, _, err := s.recalculate(ctx, userID, party)
	if err != nil {
		return result, err
	}
	s.publish(ctx, userID, party, events.ReasonRecalculated, result.ClosingBalance)
	if result.Failed > 0 {
		return result, &errs.PartialFailure{Op: "recalculate", Attempted: result.Updated + result.Failed, Failed: result.Failed}
	}
	return result, nil
}

// recalculate must run with the party lock held. It returns the party's rows with the
// balances that were actually persisted.
func (s *LedgerService) recalculate(ctx context.Context, userID, party string) (RecalcResult, []models.LedgerEntry, error) {
	result := RecalcResult{Party: party}
	entries, err := s.entries.ListByParty(ctx, userID, party)
	if err != nil {
		return result, nil, err
	}
	index := make(map[string]int, len(entries))
	for i := range entries {
		index[entries[i].ID] = i
	}
	steps := ledger.Replay(append([]models.LedgerEntry(nil), entries...))
	result.Scanned = len(steps)
	for _, step := range steps {
		if !step.Changed() {
			continue
		}
		if err := s.entries.UpdateBalance(ctx, step.EntryID, step.Balance); err != nil {
			result.Failed++
			metrics.RecalcRows.WithLabelValues("failed").Inc()
			s.logger.Error("balance write failed", "user_id", userID, "party", party, "entry_id", step.EntryID, "error", err)
			continue
		}
		result.Updated++
		metrics.RecalcRows.WithLabelValues("updated").Inc()
		entries[index[step.EntryID]].Balance = step.Balance
	}
	if result.Failed > 0 {
		s.logger.Warn("recalculation incomplete", "user_id", userID, "party", party, "scanned", result.Scanned, "updated", result.Updated, "failed", result.Failed)
	}
	ledger.SortCanonical(entries)
	result.ClosingBalance = ledger.ClosingBalance(entries)
	return result, entries, nil
}

// recalcCommitted replays party after a write that has already committed and announces the
// write whether or not the replay succeeds. A failed replay comes back as a PartialFailure:
// the write stands, and the balances stay stale until the next recalculation.
func (s *LedgerService) recalcCommitted(ctx context.Context, userID, party string, reason events.Reason) (RecalcResult, []models.LedgerEntry, error) {
	result, entries, err := s.recalculate(ctx, userID, party)
	s.publish(ctx, userID, party, reason, result.ClosingBalance)
	if err != nil {
		s.logger.Error("recalculation after commit failed", "user_id", userID, "party", party, "reason", reason, "error", err)
		return result, entries, &errs.PartialFailure{Op: "recalculate", Attempted: 1, Failed: 1, Causes: []string{party + ": " + err.Error()}}
	}
	return result, entries, nil
}

// lockParties takes the in-process locks of several parties in a fixed order.
func (s *LedgerService) lockParties(userID string, parties ...string) func() {
	keys := make([]string, 0, len(parties))
	seen := map[string]struct{}{}
	for _, party := range parties {
		key := store.PartyLockKey(userID, party)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	unlocks := make([]func(), 0, len(keys))
	for _, key := range keys {
		unlocks = append(unlocks, s.locks.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (s *LedgerService) publish(ctx context.Context, userID, party string, reason events.Reason, closing decimal.Decimal) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.PartyMutated{
		UserID:         userID,
		Party:          party,
		Reason:         reason,
		ClosingBalance: closing,
		At:             s.now(),
	})
}

func (s *LedgerService) logAudit(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error {
	if s.audit == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.audit.Log(ctx, tx, actorID, action, entityType, entityID, string(payload))
}

func (s *LedgerService) companyName(ctx context.Context, userID string) (string, error) {
	name, err := s.users.CompanyName(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.NotFound("user", userID)
	}
	return name, err
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(entity, id)
	}
	return err
}
