package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"bookkeeping/internal/db"
	"bookkeeping/internal/errs"
	"bookkeeping/internal/events"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/models"
	"bookkeeping/internal/validator"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type PartyInput struct {
	UserID         string
	Name           string
	Status         string
	CommissionRate string
	Rate           string
}

func (s *LedgerService) CreateParty(ctx context.Context, input PartyInput) (models.Party, error) {
	party := models.Party{
		ID:             s.newID(),
		UserID:         input.UserID,
		Status:         models.PartyActive,
		CommissionRate: decimal.Zero,
		Rate:           decimal.Zero,
		CreatedAt:      s.now(),
	}
	if err := s.applyPartyInput(ctx, &party, input); err != nil {
		return models.Party{}, err
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.parties.Create(ctx, tx, party); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, input.UserID, "party.create", "party", party.ID, party)
	})
	if db.IsUniqueViolation(err) {
		return models.Party{}, errs.Conflict("party already exists")
	}
	if err != nil {
		return models.Party{}, err
	}
	s.publish(ctx, input.UserID, party.Name, events.ReasonPartyCreated, decimal.Zero)
	return party, nil
}

func (s *LedgerService) ListParties(ctx context.Context, userID string) ([]models.Party, error) {
	parties, err := s.parties.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if parties == nil {
		parties = []models.Party{}
	}
	return parties, nil
}

// UpdateParty changes party metadata. A new name is a rename: every entry of the party
// follows it and both names are replayed.
func (s *LedgerService) UpdateParty(ctx context.Context, id string, input PartyInput) (models.Party, error) {
	current, err := s.parties.GetByID(ctx, input.UserID, id)
	if err != nil {
		return models.Party{}, notFoundOr(err, "party", id)
	}
	updated := current
	if input.Name == "" {
		input.Name = current.Name
	}
	if err := s.applyPartyInput(ctx, &updated, input); err != nil {
		return models.Party{}, err
	}
	renamed := updated.Name != current.Name

	unlock := s.lockParties(input.UserID, current.Name, updated.Name)
	defer unlock()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.parties.Update(ctx, tx, updated)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.NotFound("party", id)
		}
		if renamed {
			if _, err := s.entries.RenameParty(ctx, tx, input.UserID, current.Name, updated.Name); err != nil {
				return err
			}
		}
		return s.logAudit(ctx, tx, input.UserID, "party.update", "party", id, map[string]any{"from": current, "to": updated})
	})
	if db.IsUniqueViolation(err) {
		return models.Party{}, errs.Conflict("party already exists")
	}
	if err != nil {
		return models.Party{}, err
	}
	if !renamed {
		s.publish(ctx, input.UserID, updated.Name, events.ReasonPartyUpdated, decimal.Zero)
		return updated, nil
	}
	s.publish(ctx, input.UserID, current.Name, events.ReasonPartyRenamed, decimal.Zero)
	_, _, err = s.recalcCommitted(ctx, input.UserID, updated.Name, events.ReasonPartyRenamed)
	return updated, err
}

func (s *LedgerService) RenameParty(ctx context.Context, userID, id, name string) (models.Party, error) {
	current, err := s.parties.GetByID(ctx, userID, id)
	if err != nil {
		return models.Party{}, notFoundOr(err, "party", id)
	}
	return s.UpdateParty(ctx, id, PartyInput{
		UserID:         userID,
		Name:           name,
		Status:         current.Status,
		CommissionRate: current.CommissionRate.String(),
		Rate:           current.Rate.String(),
	})
}

// DeleteParty removes the party and every entry recorded against it.
func (s *LedgerService) DeleteParty(ctx context.Context, userID, id string) (int64, error) {
	party, err := s.parties.GetByID(ctx, userID, id)
	if err != nil {
		return 0, notFoundOr(err, "party", id)
	}
	unlock := s.lockParties(userID, party.Name)
	defer unlock()
	var removed int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if removed, err = s.entries.DeleteByParty(ctx, tx, userID, party.Name); err != nil {
			return err
		}
		rows, err := s.parties.Delete(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.NotFound("party", id)
		}
		return s.logAudit(ctx, tx, userID, "party.delete", "party", id, map[string]any{"name": party.Name, "entries": removed})
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, userID, party.Name, events.ReasonPartyDeleted, decimal.Zero)
	return removed, nil
}

// SetCompanyName changes the user's self-account. Company entries are grouped by category,
// so existing rows report under the new name immediately. The name may not collide with a
// registered party or another virtual category; an empty name clears it.
func (s *LedgerService) SetCompanyName(ctx context.Context, userID, name string) error {
	name = strings.Join(strings.Fields(name), " ")
	if name != "" {
		if err := validator.ValidatePartyName(name); err != nil {
			return errs.Invalid("company_name", err.Error())
		}
		if ledger.VirtualCategory(name, "") != models.CategoryNone {
			return errs.Invalid("company_name", "name is reserved for a virtual category")
		}
		_, err := s.parties.GetByName(ctx, userID, name)
		switch {
		case err == nil:
			return errs.Conflict("a party with this name exists")
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.users.UpdateCompanyName(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errs.NotFound("user", userID)
		}
		return s.logAudit(ctx, tx, userID, "user.company_name", "user", userID, map[string]string{"company_name": name})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, userID, "", events.ReasonCompanyRenamed, decimal.Zero)
	return nil
}

func (s *LedgerService) applyPartyInput(ctx context.Context, party *models.Party, input PartyInput) error {
	if err := validator.ValidatePartyName(input.Name); err != nil {
		return errs.Invalid("name", err.Error())
	}
	party.Name = strings.Join(strings.Fields(input.Name), " ")
	company, err := s.companyName(ctx, input.UserID)
	if err != nil {
		return err
	}
	if ledger.VirtualCategory(party.Name, company) != models.CategoryNone {
		return errs.Invalid("name", "name is reserved for a virtual category")
	}
	if input.Status != "" {
		status := strings.ToLower(strings.TrimSpace(input.Status))
		if status != models.PartyActive && status != models.PartyInactive {
			return errs.Invalid("status", "must be active or inactive")
		}
		party.Status = status
	}
	if input.CommissionRate != "" {
		rate, err := parseRate(input.CommissionRate)
		if err != nil {
			return errs.Invalid("commission_rate", "must be a percentage between 0 and 100")
		}
		if rate.GreaterThan(decimal.NewFromInt(100)) {
			return errs.Invalid("commission_rate", "must be a percentage between 0 and 100")
		}
		party.CommissionRate = rate
	}
	if input.Rate != "" {
		rate, err := parseRate(input.Rate)
		if err != nil {
			return errs.Invalid("rate", "must be a non-negative number")
		}
		party.Rate = rate
	}
	return nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() {
		return decimal.Zero, errs.ErrInvalid
	}
	return rate, nil
}
