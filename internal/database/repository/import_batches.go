package repository

import (
	"context"
	"time"
)

// ImportBatchRepo records completed imports.
type ImportBatchRepo struct {
	db DBTX
}

func NewImportBatchRepo(db DBTX) *ImportBatchRepo { return &ImportBatchRepo{db: db} }

func (r *ImportBatchRepo) Insert(ctx context.Context, b ImportBatch) error {
	if b.ImportedAt.IsZero() {
		b.ImportedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO import_batches(id, account_id, bank, file_name, created, skipped, imported_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Bank, b.FileName, b.Created, b.Skipped, b.ImportedAt)
	return err
}

// ListByAccount returns the account's batches, newest first.
func (r *ImportBatchRepo) ListByAccount(ctx context.Context, accountID int64) ([]ImportBatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, account_id, bank, file_name, created, skipped, imported_at FROM import_batches WHERE account_id = ? ORDER BY imported_at DESC, rowid DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportBatch
	for rows.Next() {
		var b ImportBatch
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Bank, &b.FileName, &b.Created, &b.Skipped, &b.ImportedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
