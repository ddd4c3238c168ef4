package handlers

import (
	"context"

	"bookkeeping/internal/models"
	"bookkeeping/internal/services"
	"bookkeeping/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]models.AuditLog, error)
}

type LedgerService interface {
	AddEntry(ctx context.Context, input services.AddEntryInput) (services.EntryResult, error)
	UpdateEntry(ctx context.Context, input services.UpdateEntryInput) (services.EntryResult, error)
	DeleteEntry(ctx context.Context, userID, id string) (services.RecalcResult, error)
	GetPartyLedger(ctx context.Context, userID, party string) (services.PartyLedger, error)
	Recalculate(ctx context.Context, userID, party string) (services.RecalcResult, error)
	Settle(ctx context.Context, userID string, parties []string) (services.SettleResult, error)
	Unsettle(ctx context.Context, userID, markerID string) (services.UnsettleResult, error)
	ListSettlements(ctx context.Context, userID, party string) ([]services.SettlementSummary, error)
	TrialBalance(ctx context.Context, query services.TrialBalanceQuery) (services.TrialBalanceReport, error)
	SelfCheck(ctx context.Context, userID string) (services.SelfCheckReport, error)
	CreateParty(ctx context.Context, input services.PartyInput) (models.Party, error)
	ListParties(ctx context.Context, userID string) ([]models.Party, error)
	UpdateParty(ctx context.Context, id string, input services.PartyInput) (models.Party, error)
	RenameParty(ctx context.Context, userID, id, name string) (models.Party, error)
	DeleteParty(ctx context.Context, userID, id string) (int64, error)
	SetCompanyName(ctx context.Context, userID, name string) error
}
