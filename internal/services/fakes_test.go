package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"bookkeeping/internal/cache"
	"bookkeeping/internal/events"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/lock"
	"bookkeeping/internal/models"
	"bookkeeping/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memEntryStore mirrors the SQL semantics of store.EntryStore over a map.
type memEntryStore struct {
	mu              sync.Mutex
	rows            map[string]models.LedgerEntry
	failBalance     map[string]bool
	lockErr         func(party string) error
	listByUserCalls int
	partyLocks      int
	// onListByUser runs after the rows for ListByUser have been read.
	onListByUser func()
	// failListByParty fails the next n ListByParty calls.
	failListByParty int
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{rows: map[string]models.LedgerEntry{}, failBalance: map[string]bool{}}
}

func (m *memEntryStore) Create(_ context.Context, _ store.Execer, entry models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[entry.ID] = entry
	return nil
}

func (m *memEntryStore) GetByID(_ context.Context, userID, id string) (models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rows[id]
	if !ok || entry.UserID != userID {
		return models.LedgerEntry{}, sql.ErrNoRows
	}
	return entry, nil
}

func (m *memEntryStore) filter(keep func(models.LedgerEntry) bool) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, entry := range m.rows {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	ledger.SortCanonical(out)
	return out
}

func (m *memEntryStore) ListByParty(_ context.Context, userID, party string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	if m.failListByParty > 0 {
		m.failListByParty--
		m.mu.Unlock()
		return nil, errors.New("read failed")
	}
	m.mu.Unlock()
	return m.filter(func(e models.LedgerEntry) bool {
		return e.UserID == userID && strings.EqualFold(e.PartyName, party)
	}), nil
}

func (m *memEntryStore) ListByUser(_ context.Context, userID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	m.listByUserCalls++
	hook := m.onListByUser
	m.mu.Unlock()
	rows := m.filter(func(e models.LedgerEntry) bool { return e.UserID == userID })
	if hook != nil {
		hook()
	}
	return rows, nil
}

func (m *memEntryStore) ListOpenForUpdate(_ context.Context, _ store.Selecter, userID, party string) ([]models.LedgerEntry, error) {
	return m.filter(func(e models.LedgerEntry) bool {
		return e.UserID == userID && strings.EqualFold(e.PartyName, party) && !e.IsOldRecord
	}), nil
}

func (m *memEntryStore) Update(_ context.Context, _ store.Execer, entry models.LedgerEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[entry.ID]
	if !ok || current.UserID != entry.UserID || current.IsOldRecord || current.IsSettlementMarker() {
		return 0, nil
	}
	current.PartyName, current.Date, current.Direction = entry.PartyName, entry.Date, entry.Direction
	current.Credit, current.Debit, current.Remarks = entry.Credit, entry.Debit, entry.Remarks
	current.Kind, current.Category = entry.Kind, entry.Category
	m.rows[entry.ID] = current
	return 1, nil
}

func (m *memEntryStore) Delete(_ context.Context, _ store.Execer, userID, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[id]
	if !ok || current.UserID != userID || current.IsOldRecord || current.IsSettlementMarker() {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

func (m *memEntryStore) UpdateBalance(_ context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBalance[id] {
		return errors.New("write failed")
	}
	entry := m.rows[id]
	entry.Balance = balance
	m.rows[id] = entry
	return nil
}

func (m *memEntryStore) MarkSettled(_ context.Context, _ store.Execer, ids []string, settledAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		entry, ok := m.rows[id]
		if !ok || entry.IsOldRecord {
			continue
		}
		at := settledAt
		entry.IsOldRecord, entry.SettlementDate = true, &at
		m.rows[id] = entry
		n++
	}
	return n, nil
}

func (m *memEntryStore) SetSettlementRef(_ context.Context, _ store.Execer, ids []string, markerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		entry := m.rows[id]
		ref := markerID
		entry.SettlementRef = &ref
		m.rows[id] = entry
	}
	return nil
}

func (m *memEntryStore) ListAbsorbed(_ context.Context, _ store.Selecter, userID, markerID string) ([]models.LedgerEntry, error) {
	return m.filter(func(e models.LedgerEntry) bool {
		return e.UserID == userID && e.SettlementRef != nil && *e.SettlementRef == markerID
	}), nil
}

func (m *memEntryStore) ListOrphans(_ context.Context, _ store.Selecter, userID, party, markerID string, settledAt time.Time) ([]models.LedgerEntry, error) {
	return m.filter(func(e models.LedgerEntry) bool {
		if e.UserID != userID || !strings.EqualFold(e.PartyName, party) || !e.IsOldRecord {
			return false
		}
		if e.SettlementRef != nil {
			return *e.SettlementRef == markerID
		}
		return e.SettlementDate != nil && e.SettlementDate.Equal(settledAt)
	}), nil
}

func (m *memEntryStore) Reopen(_ context.Context, _ store.Execer, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		entry, ok := m.rows[id]
		if !ok {
			continue
		}
		entry.IsOldRecord, entry.SettlementDate, entry.SettlementRef = false, nil, nil
		m.rows[id] = entry
		n++
	}
	return n, nil
}

func (m *memEntryStore) DeleteMarker(_ context.Context, _ store.Execer, userID, markerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.rows[markerID]
	if !ok || entry.UserID != userID || !entry.IsSettlementMarker() {
		return 0, nil
	}
	delete(m.rows, markerID)
	return 1, nil
}

func (m *memEntryStore) DeleteByParty(_ context.Context, _ store.Execer, userID, party string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, entry := range m.rows {
		if entry.UserID == userID && strings.EqualFold(entry.PartyName, party) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memEntryStore) RenameParty(_ context.Context, _ store.Execer, userID, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, entry := range m.rows {
		if entry.UserID == userID && strings.EqualFold(entry.PartyName, from) {
			entry.PartyName = to
			m.rows[id] = entry
			n++
		}
	}
	return n, nil
}

func (m *memEntryStore) LockParty(_ context.Context, _ store.Execer, userID, party string) error {
	m.mu.Lock()
	m.partyLocks++
	m.mu.Unlock()
	if m.lockErr != nil {
		return m.lockErr(party)
	}
	return nil
}

func (m *memEntryStore) get(id string) models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memEntryStore) mutate(id string, fn func(*models.LedgerEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.rows[id]
	fn(&entry)
	m.rows[id] = entry
}

type memPartyStore struct {
	mu   sync.Mutex
	rows map[string]models.Party
}

func newMemPartyStore() *memPartyStore {
	return &memPartyStore{rows: map[string]models.Party{}}
}

func (m *memPartyStore) duplicate(party models.Party) bool {
	for _, existing := range m.rows {
		if existing.ID != party.ID && existing.UserID == party.UserID && strings.EqualFold(existing.Name, party.Name) {
			return true
		}
	}
	return false
}

func (m *memPartyStore) Create(_ context.Context, _ store.Execer, party models.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicate(party) {
		return &pq.Error{Code: "23505"}
	}
	m.rows[party.ID] = party
	return nil
}

func (m *memPartyStore) GetByName(_ context.Context, userID, name string) (models.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, party := range m.rows {
		if party.UserID == userID && strings.EqualFold(party.Name, strings.TrimSpace(name)) {
			return party, nil
		}
	}
	return models.Party{}, sql.ErrNoRows
}

func (m *memPartyStore) GetByID(_ context.Context, userID, id string) (models.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	party, ok := m.rows[id]
	if !ok || party.UserID != userID {
		return models.Party{}, sql.ErrNoRows
	}
	return party, nil
}

func (m *memPartyStore) List(_ context.Context, userID string) ([]models.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Party
	for _, party := range m.rows {
		if party.UserID == userID {
			out = append(out, party)
		}
	}
	return out, nil
}

func (m *memPartyStore) Names(ctx context.Context, userID string) ([]string, error) {
	parties, _ := m.List(ctx, userID)
	names := make([]string, 0, len(parties))
	for _, party := range parties {
		names = append(names, party.Name)
	}
	return names, nil
}

func (m *memPartyStore) Update(_ context.Context, _ store.Execer, party models.Party) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[party.ID]; !ok {
		return 0, nil
	}
	if m.duplicate(party) {
		return 0, &pq.Error{Code: "23505"}
	}
	m.rows[party.ID] = party
	return 1, nil
}

func (m *memPartyStore) Delete(_ context.Context, _ store.Execer, userID, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if party, ok := m.rows[id]; !ok || party.UserID != userID {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

type stubUserStore struct {
	companies map[string]string
}

func (s stubUserStore) CompanyName(_ context.Context, userID string) (string, error) {
	name, ok := s.companies[userID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return name, nil
}

func (s stubUserStore) UpdateCompanyName(_ context.Context, _ store.Execer, userID, name string) (int64, error) {
	if _, ok := s.companies[userID]; !ok {
		return 0, nil
	}
	s.companies[userID] = name
	return 1, nil
}

type stubAuditStore struct {
	mu      sync.Mutex
	actions []string
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.PartyMutated
}

func (r *eventRecorder) handle(_ context.Context, event events.PartyMutated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) last() events.PartyMutated {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return events.PartyMutated{}
	}
	return r.events[len(r.events)-1]
}

type harness struct {
	svc     *LedgerService
	entries *memEntryStore
	parties *memPartyStore
	users   stubUserStore
	audit   *stubAuditStore
	events  *eventRecorder
	reports *cache.Memory
}

const testUser = "user-1"

func newHarness(t *testing.T, parties ...string) *harness {
	t.Helper()
	h := &harness{
		entries: newMemEntryStore(),
		parties: newMemPartyStore(),
		users:   stubUserStore{companies: map[string]string{testUser: "Acme Ltd", "user-2": ""}},
		audit:   &stubAuditStore{},
		events:  &eventRecorder{},
		reports: cache.NewMemory(time.Minute),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus()
	bus.Subscribe(cache.Invalidator(h.reports, logger))
	bus.Subscribe(h.events.handle)
	h.svc = NewLedgerService(Deps{
		TxRunner: fakeTxRunner{},
		Entries:  h.entries,
		Parties:  h.parties,
		Users:    h.users,
		Audit:    h.audit,
		Reports:  h.reports,
		Events:   bus,
		Logger:   logger,
	})

	var mu sync.Mutex
	clock := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	seq := 0
	h.svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	h.svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	h.svc.locks = lock.NewKeyed()
	for _, name := range parties {
		if _, err := h.svc.CreateParty(context.Background(), PartyInput{UserID: testUser, Name: name}); err != nil {
			t.Fatalf("create party %s: %v", name, err)
		}
	}
	return h
}

func (h *harness) add(t *testing.T, party, date string, direction models.Direction, amount string) models.LedgerEntry {
	t.Helper()
	result, err := h.svc.AddEntry(context.Background(), AddEntryInput{
		UserID:    testUser,
		Party:     party,
		Date:      date,
		Direction: string(direction),
		Amount:    amount,
	})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	return result.Entry
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
