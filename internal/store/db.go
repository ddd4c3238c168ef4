package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// isRowID reports whether id can name a row. Anything else cannot match, and Postgres
// would reject it with 22P02 rather than return no rows.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

// Tx is the subset of *sqlx.Tx the stores use inside a transaction.
type Tx interface {
	Execer
	Getter
	Selecter
}
