package store

import (
	"context"
	"database/sql"
	"strings"

	"bookkeeping/internal/models"
)

type PartyStore struct {
	db DB
}

func NewPartyStore(db DB) *PartyStore {
	return &PartyStore{db: db}
}

const partyColumns = `id, user_id, name, status, commission_rate, rate, created_at`

func (s *PartyStore) Create(ctx context.Context, tx Execer, party models.Party) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO parties (id, user_id, name, status, commission_rate, rate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, party.ID, party.UserID, party.Name, party.Status, party.CommissionRate, party.Rate)
	return err
}

func (s *PartyStore) GetByName(ctx context.Context, userID, name string) (models.Party, error) {
	var party models.Party
	err := s.db.GetContext(ctx, &party, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE user_id = $1 AND lower(name) = lower($2)
	`, userID, lowerTrim(name))
	return party, err
}

func (s *PartyStore) GetByID(ctx context.Context, userID, id string) (models.Party, error) {
	var party models.Party
	if !isRowID(id) {
		return party, sql.ErrNoRows
	}
	err := s.db.GetContext(ctx, &party, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	return party, err
}

func (s *PartyStore) List(ctx context.Context, userID string) ([]models.Party, error) {
	var parties []models.Party
	err := s.db.SelectContext(ctx, &parties, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE user_id = $1
		ORDER BY lower(name) ASC
	`, userID)
	return parties, err
}

// Names returns the registered party names of a user, the trial balance admission list.
func (s *PartyStore) Names(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `SELECT name FROM parties WHERE user_id = $1`, userID)
	return names, err
}

func (s *PartyStore) Update(ctx context.Context, tx Execer, party models.Party) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE parties
		SET name = $3, status = $4, commission_rate = $5, rate = $6
		WHERE user_id = $1 AND id = $2
	`, party.UserID, party.ID, party.Name, party.Status, party.CommissionRate, party.Rate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PartyStore) Delete(ctx context.Context, tx Execer, userID, id string) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM parties WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func lowerTrim(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
