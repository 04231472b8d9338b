// Package queries holds the SQL access layer. Every method takes a context
// and runs a single statement against the bound connection or transaction.
package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func newID() string {
	return uuid.New().String()
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
