package repository

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repos can run inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Account represents a bank account row.
type Account struct {
	ID        int64
	Number    string
	Bank      string
	SortOrder int
	CreatedAt time.Time
}

// Category represents a category row. Roots have a nil ParentID.
type Category struct {
	ID        int64
	AccountID int64
	ParentID  *int64
	Name      string
	SortOrder int
}

// Movement represents a ledger movement row. Amounts are in cents.
type Movement struct {
	ID              int64
	AccountID       int64
	Date            string // YYYY-MM-DD
	Concept         string
	OriginalConcept string
	AmountCents     int64
	BalanceCents    *int64
	CategoryID      *int64
	Fingerprint     string
	Reconciled      bool
	Notes           *string
	CreatedAt       time.Time
}

// ImportBatch records one completed movement import.
type ImportBatch struct {
	ID         string
	AccountID  int64
	Bank       string
	FileName   string
	Created    int
	Skipped    int
	ImportedAt time.Time
}

// Repos bundles every repository bound to the same handle.
type Repos struct {
	Accounts   *AccountRepo
	Categories *CategoryRepo
	Movements  *MovementRepo
	Batches    *ImportBatchRepo
}

// New binds all repositories to db, which may be a transaction.
func New(db DBTX) Repos {
	return Repos{
		Accounts:   NewAccountRepo(db),
		Categories: NewCategoryRepo(db),
		Movements:  NewMovementRepo(db),
		Batches:    NewImportBatchRepo(db),
	}
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
