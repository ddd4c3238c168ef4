package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"bookkeeping/internal/errs"
	"bookkeeping/internal/events"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/models"
	"bookkeeping/internal/money"
	"bookkeeping/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func newUUID() string {
	return uuid.NewString()
}

type AddEntryInput struct {
	UserID    string
	Party     string
	Date      string
	Direction string
	Amount    string
	Remarks   string
	Category  string
}

// EntryResult is a written entry together with the replay it triggered.
type EntryResult struct {
	Entry  models.LedgerEntry `json:"entry"`
	Recalc RecalcResult       `json:"recalc"`
}

func (s *LedgerService) AddEntry(ctx context.Context, input AddEntryInput) (EntryResult, error) {
	date, err := validator.ParseDate(input.Date)
	if err != nil {
		return EntryResult{}, errs.Invalid("date", "unparsable date")
	}
	direction := models.Direction(strings.ToLower(strings.TrimSpace(input.Direction)))
	if !direction.Valid() {
		return EntryResult{}, errs.Invalid("direction", "must be credit or debit")
	}
	amount, err := money.ParsePositive(input.Amount)
	if err != nil {
		return EntryResult{}, errs.Invalid("amount", err.Error())
	}
	category := models.Category(strings.ToLower(strings.TrimSpace(input.Category)))
	if !category.Valid() {
		return EntryResult{}, errs.Invalid("category", "unknown category")
	}
	party, kind, category, err := s.resolveParty(ctx, input.UserID, input.Party, category)
	if err != nil {
		return EntryResult{}, err
	}

	entry := models.LedgerEntry{
		ID:        s.newID(),
		UserID:    input.UserID,
		PartyName: party,
		Date:      date,
		CreatedAt: s.now(),
		Direction: direction,
		Credit:    decimal.Zero,
		Debit:     decimal.Zero,
		Balance:   decimal.Zero,
		Remarks:   strings.TrimSpace(input.Remarks),
		Kind:      kind,
		Category:  category,
	}
	setAmount(&entry, amount)

	unlock := s.lockParties(input.UserID, party)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Create(ctx, tx, entry); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, input.UserID, "entry.create", "ledger_entry", entry.ID, entry)
	})
	if err != nil {
		return EntryResult{}, err
	}
	return s.afterEntryWrite(ctx, entry, events.ReasonEntryAdded)
}

type UpdateEntryInput struct {
	UserID    string
	ID        string
	Party     *string
	Date      *string
	Direction *string
	Amount    *string
	Remarks   *string
}

func (s *LedgerService) UpdateEntry(ctx context.Context, input UpdateEntryInput) (EntryResult, error) {
	current, err := s.entries.GetByID(ctx, input.UserID, input.ID)
	if err != nil {
		return EntryResult{}, notFoundOr(err, "entry", input.ID)
	}
	if err := editable(current); err != nil {
		return EntryResult{}, err
	}
	updated := current
	if input.Date != nil {
		date, err := validator.ParseDate(*input.Date)
		if err != nil {
			return EntryResult{}, errs.Invalid("date", "unparsable date")
		}
		updated.Date = date
	}
	amount := current.Amount()
	if input.Amount != nil {
		if amount, err = money.ParsePositive(*input.Amount); err != nil {
			return EntryResult{}, errs.Invalid("amount", err.Error())
		}
	}
	if input.Direction != nil {
		updated.Direction = models.Direction(strings.ToLower(strings.TrimSpace(*input.Direction)))
		if !updated.Direction.Valid() {
			return EntryResult{}, errs.Invalid("direction", "must be credit or debit")
		}
	}
	setAmount(&updated, amount)
	if input.Remarks != nil {
		updated.Remarks = strings.TrimSpace(*input.Remarks)
	}
	if input.Party != nil && ledger.NormalizeName(*input.Party) != ledger.NormalizeName(current.PartyName) {
		party, kind, category, err := s.resolveParty(ctx, input.UserID, *input.Party, models.CategoryNone)
		if err != nil {
			return EntryResult{}, err
		}
		updated.PartyName, updated.Kind, updated.Category = party, kind, category
	}

	unlock := s.lockParties(input.UserID, current.PartyName, updated.PartyName)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.entries.Update(ctx, tx, updated)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.Conflict("entry was settled or removed")
		}
		return s.logAudit(ctx, tx, input.UserID, "entry.update", "ledger_entry", updated.ID, updated)
	})
	if err != nil {
		return EntryResult{}, err
	}
	if ledger.NormalizeName(current.PartyName) != ledger.NormalizeName(updated.PartyName) {
		if _, _, err := s.recalcCommitted(ctx, input.UserID, current.PartyName, events.ReasonEntryUpdated); err != nil {
			result, _ := s.afterEntryWrite(ctx, updated, events.ReasonEntryUpdated)
			return result, err
		}
	}
	return s.afterEntryWrite(ctx, updated, events.ReasonEntryUpdated)
}

func (s *LedgerService) DeleteEntry(ctx context.Context, userID, id string) (RecalcResult, error) {
	current, err := s.entries.GetByID(ctx, userID, id)
	if err != nil {
		return RecalcResult{}, notFoundOr(err, "entry", id)
	}
	if err := editable(current); err != nil {
		return RecalcResult{}, err
	}
	unlock := s.lockParties(userID, current.PartyName)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.entries.Delete(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.Conflict("entry was settled or removed")
		}
		return s.logAudit(ctx, tx, userID, "entry.delete", "ledger_entry", id, current)
	})
	if err != nil {
		return RecalcResult{}, err
	}
	result, _, err := s.recalcCommitted(ctx, userID, current.PartyName, events.ReasonEntryDeleted)
	return result, err
}

// PartyLedger is the read view of one party: open rows, settled history and the closing
// balance, all in canonical order.
type PartyLedger struct {
	Party          string               `json:"party"`
	Open           []models.LedgerEntry `json:"open_entries"`
	Settled        []models.LedgerEntry `json:"settled_entries"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
	CarriedForward decimal.Decimal      `json:"carried_forward"`
}

func (s *LedgerService) GetPartyLedger(ctx context.Context, userID, party string) (PartyLedger, error) {
	name, _, _, err := s.resolveParty(ctx, userID, party, models.CategoryNone)
	if err != nil {
		var invalid *errs.ValidationError
		if errors.As(err, &invalid) {
			return PartyLedger{}, errs.NotFound("party", party)
		}
		return PartyLedger{}, err
	}
	entries, err := s.entries.ListByParty(ctx, userID, name)
	if err != nil {
		return PartyLedger{}, err
	}
	open, settled := ledger.Split(entries)
	return PartyLedger{
		Party:          name,
		Open:           open,
		Settled:        settled,
		ClosingBalance: ledger.ClosingBalance(entries),
		CarriedForward: ledger.CarriedForward(entries),
	}, nil
}

// afterEntryWrite replays the entry's party, then reports the entry as stored. The entry is
// returned even when the replay fails, since the write itself has committed.
func (s *LedgerService) afterEntryWrite(ctx context.Context, entry models.LedgerEntry, reason events.Reason) (EntryResult, error) {
	result, entries, err := s.recalcCommitted(ctx, entry.UserID, entry.PartyName, reason)
	for _, stored := range entries {
		if stored.ID == entry.ID {
			entry = stored
			break
		}
	}
	return EntryResult{Entry: entry, Recalc: result}, err
}

// resolveParty admits a registered party or a virtual category. Registered names are
// returned in their stored spelling.
func (s *LedgerService) resolveParty(ctx context.Context, userID, raw string, requested models.Category) (string, models.EntryKind, models.Category, error) {
	if err := validator.ValidatePartyName(raw); err != nil {
		return "", "", "", errs.Invalid("party", err.Error())
	}
	name := strings.Join(strings.Fields(raw), " ")
	company, err := s.companyName(ctx, userID)
	if err != nil {
		return "", "", "", err
	}
	if requested == models.CategoryCompany && company == "" {
		return "", "", "", errs.Invalid("category", "company name is not configured")
	}
	kind, category := ledger.Classify(name, company, requested)
	if kind == models.KindVirtual {
		return name, kind, category, nil
	}
	party, err := s.parties.GetByName(ctx, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", "", errs.Invalid("party", "unknown party")
	}
	if err != nil {
		return "", "", "", err
	}
	return party.Name, kind, category, nil
}

func editable(entry models.LedgerEntry) error {
	if entry.IsSettlementMarker() {
		return errs.Conflict("settlement markers can only be removed by unsettling")
	}
	if entry.IsOldRecord {
		return errs.Conflict("entry is settled")
	}
	return nil
}

func setAmount(entry *models.LedgerEntry, amount decimal.Decimal) {
	entry.Credit, entry.Debit = decimal.Zero, decimal.Zero
	if entry.Direction == models.Debit {
		entry.Debit = amount
	} else {
		entry.Credit = amount
	}
}
