package store

import (
	"context"

	"bookkeeping/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, company_name)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.CompanyName)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, password_hash, company_name, created_at
		FROM users
		WHERE email = $1
	`, email)
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT id, username, email, company_name, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return user, err
}

// CompanyName is the user's self-account name, empty when never set.
func (s *UserStore) CompanyName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name, `SELECT COALESCE(company_name, '') FROM users WHERE id = $1`, userID)
	return name, err
}

func (s *UserStore) UpdateCompanyName(ctx context.Context, tx Execer, userID, name string) (int64, error) {
	result, err := tx.ExecContext(ctx, `UPDATE users SET company_name = $2 WHERE id = $1`, userID, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListIDs is used by operator tooling that walks every tenant.
func (s *UserStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY created_at ASC`)
	return ids, err
}
