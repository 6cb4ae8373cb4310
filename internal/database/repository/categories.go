package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CategoryRepo handles per-account category trees.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

const categoryColumns = `id, account_id, parent_id, name, sort_order`

// ListByAccount returns every category of the account ordered by parent then order.
func (r *CategoryRepo) ListByAccount(ctx context.Context, accountID int64) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE account_id = ? ORDER BY parent_id IS NOT NULL, parent_id, sort_order, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCategories(rows)
}

// ListAll returns categories across accounts.
func (r *CategoryRepo) ListAll(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY account_id, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCategories(rows)
}

func (r *CategoryRepo) Get(ctx context.Context, id int64) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Children lists direct children of parentID; a nil parent lists the roots.
func (r *CategoryRepo) Children(ctx context.Context, accountID int64, parentID *int64) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE account_id = ? AND parent_id IS ? ORDER BY sort_order, id`, accountID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCategories(rows)
}

// FindByNameAndParent matches name case-insensitively among the siblings under parentID.
func (r *CategoryRepo) FindByNameAndParent(ctx context.Context, accountID int64, name string, parentID *int64) (*Category, error) {
	siblings, err := r.Children(ctx, accountID, parentID)
	if err != nil {
		return nil, err
	}
	want := strings.ToUpper(strings.TrimSpace(name))
	for i := range siblings {
		if strings.ToUpper(siblings[i].Name) == want {
			return &siblings[i], nil
		}
	}
	return nil, nil
}

// Create inserts c with its given sort order.
func (r *CategoryRepo) Create(ctx context.Context, c Category) (Category, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories(account_id, parent_id, name, sort_order) VALUES (?, ?, ?, ?)`,
		c.AccountID, c.ParentID, c.Name, c.SortOrder)
	if err != nil {
		return Category{}, fmt.Errorf("insert category %q: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

// CreateNext inserts a category ordered after its existing siblings.
func (r *CategoryRepo) CreateNext(ctx context.Context, accountID int64, name string, parentID *int64) (Category, error) {
	var maxOrder sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM categories WHERE account_id = ? AND parent_id IS ?`, accountID, parentID).Scan(&maxOrder); err != nil {
		return Category{}, fmt.Errorf("next sort order: %w", err)
	}
	order := 0
	if maxOrder.Valid {
		order = int(maxOrder.Int64) + 1
	}
	return r.Create(ctx, Category{AccountID: accountID, ParentID: parentID, Name: name, SortOrder: order})
}

// Count returns the number of categories, optionally restricted to one account.
func (r *CategoryRepo) Count(ctx context.Context, accountID *int64) (int, error) {
	var n int
	var err error
	if accountID == nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE account_id = ?`, *accountID).Scan(&n)
	}
	return n, err
}

// Delete removes one category; its subtree cascades.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}

// ResetSequence clears the autoincrement counter once the table is empty.
func (r *CategoryRepo) ResetSequence(ctx context.Context) error {
	n, err := r.Count(ctx, nil)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'categories'`)
	return err
}

func scanCategories(rows *sql.Rows) ([]Category, error) {
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(s scanner) (Category, error) {
	var c Category
	var parent sql.NullInt64
	if err := s.Scan(&c.ID, &c.AccountID, &parent, &c.Name, &c.SortOrder); err != nil {
		return Category{}, err
	}
	c.ParentID = nullInt64(parent)
	return c, nil
}
