package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

// Create inserts a and returns its new id.
func (r *AccountRepo) Create(ctx context.Context, a Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO accounts(number, bank, sort_order) VALUES (?, ?, ?)`, a.Number, a.Bank, a.SortOrder)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

func (r *AccountRepo) Get(ctx context.Context, id int64) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, number, bank, sort_order, created_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, number, bank, sort_order, created_at FROM accounts ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes the account; movements, categories and batches cascade.
func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return err
}

func scanAccount(s scanner) (Account, error) {
	var a Account
	err := s.Scan(&a.ID, &a.Number, &a.Bank, &a.SortOrder, &a.CreatedAt)
	return a, err
}
