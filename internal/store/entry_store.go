package store

import (
	"context"
	"database/sql"
	"time"

	"bookkeeping/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type EntryStore struct {
	db DB
}

func NewEntryStore(db DB) *EntryStore {
	return &EntryStore{db: db}
}

const entryColumns = `id, user_id, party_name, entry_date, created_at, direction, credit, debit, balance,
	remarks, kind, category, is_old_record, settlement_date, settlement_ref`

// canonicalOrder is the replay order. id is only there to make the order total.
const canonicalOrder = `ORDER BY entry_date ASC, created_at ASC, id ASC`

func (s *EntryStore) Create(ctx context.Context, tx Execer, entry models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, entry.ID, entry.UserID, entry.PartyName, entry.Date, entry.CreatedAt, entry.Direction,
		entry.Credit, entry.Debit, entry.Balance, entry.Remarks, entry.Kind, entry.Category,
		entry.IsOldRecord, entry.SettlementDate, entry.SettlementRef)
	return err
}

func (s *EntryStore) GetByID(ctx context.Context, userID, id string) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if !isRowID(id) {
		return entry, sql.ErrNoRows
	}
	err := s.db.GetContext(ctx, &entry, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	return entry, err
}

// ListByParty returns every row of a party, settled ones included, in canonical order.
func (s *EntryStore) ListByParty(ctx context.Context, userID, party string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND lower(party_name) = lower($2)
		`+canonicalOrder, userID, party)
	return entries, err
}

func (s *EntryStore) ListByUser(ctx context.Context, userID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1
		`+canonicalOrder, userID)
	return entries, err
}

// ListOpenForUpdate locks the party's open rows for the rest of the transaction.
func (s *EntryStore) ListOpenForUpdate(ctx context.Context, tx Selecter, userID, party string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := tx.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND lower(party_name) = lower($2) AND is_old_record = FALSE
		`+canonicalOrder+`
		FOR UPDATE
	`, userID, party)
	return entries, err
}

func (s *EntryStore) Update(ctx context.Context, tx Execer, entry models.LedgerEntry) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET party_name = $3, entry_date = $4, direction = $5, credit = $6, debit = $7,
			remarks = $8, kind = $9, category = $10
		WHERE user_id = $1 AND id = $2 AND is_old_record = FALSE AND kind <> 'settlement'
	`, entry.UserID, entry.ID, entry.PartyName, entry.Date, entry.Direction, entry.Credit,
		entry.Debit, entry.Remarks, entry.Kind, entry.Category)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *EntryStore) Delete(ctx context.Context, tx Execer, userID, id string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM ledger_entries
		WHERE user_id = $1 AND id = $2 AND is_old_record = FALSE AND kind <> 'settlement'
	`, userID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateBalance writes one recalculated balance outside any transaction so that a failed
// row does not undo the rows written before it.
func (s *EntryStore) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ledger_entries SET balance = $2 WHERE id = $1`, id, balance)
	return err
}

func (s *EntryStore) MarkSettled(ctx context.Context, tx Execer, ids []string, settledAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET is_old_record = TRUE, settlement_date = $2
		WHERE id = ANY($1::uuid[]) AND is_old_record = FALSE
	`, pq.Array(ids), settledAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *EntryStore) SetSettlementRef(ctx context.Context, tx Execer, ids []string, markerID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries SET settlement_ref = $2 WHERE id = ANY($1::uuid[])
	`, pq.Array(ids), markerID)
	return err
}

// ListAbsorbed returns the rows a marker absorbed through its reference.
func (s *EntryStore) ListAbsorbed(ctx context.Context, tx Selecter, userID, markerID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := tx.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND settlement_ref = $2
		`+canonicalOrder, userID, markerID)
	return entries, err
}

// ListOrphans finds settled rows of the party that still point at the marker, or that were
// settled at the marker's instant without ever receiving a reference.
func (s *EntryStore) ListOrphans(ctx context.Context, tx Selecter, userID, party, markerID string, settledAt time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := tx.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND lower(party_name) = lower($2) AND is_old_record = TRUE
			AND (settlement_ref = $3 OR (settlement_ref IS NULL AND settlement_date = $4))
		`+canonicalOrder, userID, party, markerID, settledAt)
	return entries, err
}

// Reopen clears settlement state. Rows absorbed by the reopened rows keep theirs.
func (s *EntryStore) Reopen(ctx context.Context, tx Execer, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET is_old_record = FALSE, settlement_date = NULL, settlement_ref = NULL
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteMarker removes a settlement marker. Other kinds are never matched.
func (s *EntryStore) DeleteMarker(ctx context.Context, tx Execer, userID, markerID string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM ledger_entries WHERE user_id = $1 AND id = $2 AND kind = 'settlement'
	`, userID, markerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *EntryStore) DeleteByParty(ctx context.Context, tx Execer, userID, party string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM ledger_entries WHERE user_id = $1 AND lower(party_name) = lower($2)
	`, userID, party)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *EntryStore) RenameParty(ctx context.Context, tx Execer, userID, from, to string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries SET party_name = $3 WHERE user_id = $1 AND lower(party_name) = lower($2)
	`, userID, from, to)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// LockParty serialises settlement work on one (user, party) pair across processes. The lock
// is released when the surrounding transaction ends.
func (s *EntryStore) LockParty(ctx context.Context, tx Execer, userID, party string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, PartyLockKey(userID, party))
	return err
}

func PartyLockKey(userID, party string) string {
	return userID + "|" + lowerTrim(party)
}

// ListUnclassified returns rows written before kinds existed. The backfill reads them
// together with their owner's company name.
func (s *EntryStore) ListUnclassified(ctx context.Context, limit int) ([]UnclassifiedEntry, error) {
	var rows []UnclassifiedEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT e.id, e.party_name, e.remarks, COALESCE(u.company_name, '') AS company_name
		FROM ledger_entries e
		JOIN users u ON u.id = e.user_id
		WHERE e.kind = ''
		ORDER BY e.created_at ASC
		LIMIT $1
	`, limit)
	return rows, err
}

type UnclassifiedEntry struct {
	ID          string `db:"id"`
	PartyName   string `db:"party_name"`
	Remarks     string `db:"remarks"`
	CompanyName string `db:"company_name"`
}

func (s *EntryStore) SetKind(ctx context.Context, id string, kind models.EntryKind, category models.Category) error {
	_, err := s.db.ExecContext(ctx, `UPDATE ledger_entries SET kind = $2, category = $3 WHERE id = $1`, id, kind, category)
	return err
}
