package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"bookkeeping/internal/auth"
	"bookkeeping/internal/config"
	"bookkeeping/internal/models"
	"bookkeeping/internal/services"
	"bookkeeping/internal/store"
	"bookkeeping/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, actorID string, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actorID, limit, offset)
}

type stubLedger struct {
	addEntryFn        func(ctx context.Context, input services.AddEntryInput) (services.EntryResult, error)
	updateEntryFn     func(ctx context.Context, input services.UpdateEntryInput) (services.EntryResult, error)
	deleteEntryFn     func(ctx context.Context, userID, id string) (services.RecalcResult, error)
	partyLedgerFn     func(ctx context.Context, userID, party string) (services.PartyLedger, error)
	recalculateFn     func(ctx context.Context, userID, party string) (services.RecalcResult, error)
	settleFn          func(ctx context.Context, userID string, parties []string) (services.SettleResult, error)
	unsettleFn        func(ctx context.Context, userID, markerID string) (services.UnsettleResult, error)
	listSettlementsFn func(ctx context.Context, userID, party string) ([]services.SettlementSummary, error)
	trialBalanceFn    func(ctx context.Context, query services.TrialBalanceQuery) (services.TrialBalanceReport, error)
	selfCheckFn       func(ctx context.Context, userID string) (services.SelfCheckReport, error)
	createPartyFn     func(ctx context.Context, input services.PartyInput) (models.Party, error)
	listPartiesFn     func(ctx context.Context, userID string) ([]models.Party, error)
	updatePartyFn     func(ctx context.Context, id string, input services.PartyInput) (models.Party, error)
	renamePartyFn     func(ctx context.Context, userID, id, name string) (models.Party, error)
	deletePartyFn     func(ctx context.Context, userID, id string) (int64, error)
	setCompanyFn      func(ctx context.Context, userID, name string) error
}

func (s stubLedger) AddEntry(ctx context.Context, input services.AddEntryInput) (services.EntryResult, error) {
	if s.addEntryFn == nil {
		return services.EntryResult{}, nil
	}
	return s.addEntryFn(ctx, input)
}

func (s stubLedger) UpdateEntry(ctx context.Context, input services.UpdateEntryInput) (services.EntryResult, error) {
	if s.updateEntryFn == nil {
		return services.EntryResult{}, nil
	}
	return s.updateEntryFn(ctx, input)
}

func (s stubLedger) DeleteEntry(ctx context.Context, userID, id string) (services.RecalcResult, error) {
	if s.deleteEntryFn == nil {
		return services.RecalcResult{}, nil
	}
	return s.deleteEntryFn(ctx, userID, id)
}

func (s stubLedger) GetPartyLedger(ctx context.Context, userID, party string) (services.PartyLedger, error) {
	if s.partyLedgerFn == nil {
		return services.PartyLedger{}, nil
	}
	return s.partyLedgerFn(ctx, userID, party)
}

func (s stubLedger) Recalculate(ctx context.Context, userID, party string) (services.RecalcResult, error) {
	if s.recalculateFn == nil {
		return services.RecalcResult{}, nil
	}
	return s.recalculateFn(ctx, userID, party)
}

func (s stubLedger) Settle(ctx context.Context, userID string, parties []string) (services.SettleResult, error) {
	if s.settleFn == nil {
		return services.SettleResult{}, nil
	}
	return s.settleFn(ctx, userID, parties)
}

func (s stubLedger) Unsettle(ctx context.Context, userID, markerID string) (services.UnsettleResult, error) {
	if s.unsettleFn == nil {
		return services.UnsettleResult{}, nil
	}
	return s.unsettleFn(ctx, userID, markerID)
}

func (s stubLedger) ListSettlements(ctx context.Context, userID, party string) ([]services.SettlementSummary, error) {
	if s.listSettlementsFn == nil {
		return nil, nil
	}
	return s.listSettlementsFn(ctx, userID, party)
}

func (s stubLedger) TrialBalance(ctx context.Context, query services.TrialBalanceQuery) (services.TrialBalanceReport, error) {
	if s.trialBalanceFn == nil {
		return services.TrialBalanceReport{}, nil
	}
	return s.trialBalanceFn(ctx, query)
}

func (s stubLedger) SelfCheck(ctx context.Context, userID string) (services.SelfCheckReport, error) {
	if s.selfCheckFn == nil {
		return services.SelfCheckReport{}, nil
	}
	return s.selfCheckFn(ctx, userID)
}

func (s stubLedger) CreateParty(ctx context.Context, input services.PartyInput) (models.Party, error) {
	if s.createPartyFn == nil {
		return models.Party{}, nil
	}
	return s.createPartyFn(ctx, input)
}

func (s stubLedger) ListParties(ctx context.Context, userID string) ([]models.Party, error) {
	if s.listPartiesFn == nil {
		return nil, nil
	}
	return s.listPartiesFn(ctx, userID)
}

func (s stubLedger) UpdateParty(ctx context.Context, id string, input services.PartyInput) (models.Party, error) {
	if s.updatePartyFn == nil {
		return models.Party{}, nil
	}
	return s.updatePartyFn(ctx, id, input)
}

func (s stubLedger) RenameParty(ctx context.Context, userID, id, name string) (models.Party, error) {
	if s.renamePartyFn == nil {
		return models.Party{}, nil
	}
	return s.renamePartyFn(ctx, userID, id, name)
}

func (s stubLedger) DeleteParty(ctx context.Context, userID, id string) (int64, error) {
	if s.deletePartyFn == nil {
		return 0, nil
	}
	return s.deletePartyFn(ctx, userID, id)
}

func (s stubLedger) SetCompanyName(ctx context.Context, userID, name string) error {
	if s.setCompanyFn == nil {
		return nil
	}
	return s.setCompanyFn(ctx, userID, name)
}

func newTestHandler(users UserStore, audit AuditStore, ledger LedgerService) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(fakeTxRunner{}, cfg, users, audit, ledger, websocket.NewHub(), nil)
}

// do sends a request through the full router. A non-empty userID is sent as a bearer token.
func do(t *testing.T, h *Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}
