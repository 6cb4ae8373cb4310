package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MovementRepo handles ledger movements. The canonical order of an
// account's ledger is (date ASC, id ASC).
type MovementRepo struct {
	db DBTX
}

func NewMovementRepo(db DBTX) *MovementRepo { return &MovementRepo{db: db} }

const movementColumns = `id, account_id, date, concept, original_concept, amount, balance_after, category_id, fingerprint, reconciled, notes, created_at`

// Insert stores m and returns the new id.
func (r *MovementRepo) Insert(ctx context.Context, m Movement) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO movements(
	 account_id, date, concept, original_concept, amount, balance_after,
	 category_id, fingerprint, reconciled, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.AccountID, m.Date, m.Concept, m.OriginalConcept, m.AmountCents, m.BalanceCents,
		m.CategoryID, m.Fingerprint, m.Reconciled, m.Notes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindByFingerprints returns the account's rows whose fingerprint is in fps,
// ordered by date then id. Callers chunk large sets.
func (r *MovementRepo) FindByFingerprints(ctx context.Context, accountID int64, fps []string) ([]Movement, error) {
	if len(fps) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(fps)+1)
	args = append(args, accountID)
	for _, fp := range fps {
		args = append(args, fp)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fps)), ",")
	query := `SELECT ` + movementColumns + ` FROM movements WHERE account_id = ? AND fingerprint IN (` + placeholders + `) ORDER BY date, id`
	return r.query(ctx, query, args...)
}

// ExistsFingerprint reports whether the account already holds fp.
func (r *MovementRepo) ExistsFingerprint(ctx context.Context, accountID int64, fp string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM movements WHERE account_id = ? AND fingerprint = ? LIMIT 1`, accountID, fp).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Fingerprints returns the set of fingerprints stored for the account.
func (r *MovementRepo) Fingerprints(ctx context.Context, accountID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fingerprint FROM movements WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out[fp] = struct{}{}
	}
	return out, rows.Err()
}

// Latest returns the account's most recent movement by date then id.
func (r *MovementRepo) Latest(ctx context.Context, accountID int64) (*Movement, error) {
	return r.first(ctx, `SELECT `+movementColumns+` FROM movements WHERE account_id = ? ORDER BY date DESC, id DESC LIMIT 1`, accountID)
}

// LatestWithBalance returns the most recent movement carrying a running balance.
func (r *MovementRepo) LatestWithBalance(ctx context.Context, accountID int64) (*Movement, error) {
	return r.first(ctx, `SELECT `+movementColumns+` FROM movements WHERE account_id = ? AND balance_after IS NOT NULL ORDER BY date DESC, id DESC LIMIT 1`, accountID)
}

// LatestByOriginalConcept finds the most recent movement imported with the same raw concept.
func (r *MovementRepo) LatestByOriginalConcept(ctx context.Context, accountID int64, concept string) (*Movement, error) {
	return r.first(ctx, `SELECT `+movementColumns+` FROM movements WHERE account_id = ? AND original_concept = ? ORDER BY date DESC, id DESC LIMIT 1`, accountID, concept)
}

// LatestCategorizedByNotes finds the most recent categorised movement whose notes contain term.
func (r *MovementRepo) LatestCategorizedByNotes(ctx context.Context, accountID int64, term string) (*Movement, error) {
	return r.first(ctx, `SELECT `+movementColumns+` FROM movements
	WHERE account_id = ? AND category_id IS NOT NULL AND notes LIKE ? ESCAPE '\'
	ORDER BY date DESC, id DESC LIMIT 1`, accountID, "%"+escapeLike(term)+"%")
}

// FindByDateAndAmount lists the account's movements on date with an amount in [minCents, maxCents].
func (r *MovementRepo) FindByDateAndAmount(ctx context.Context, accountID int64, date string, minCents, maxCents int64) ([]Movement, error) {
	return r.query(ctx, `SELECT `+movementColumns+` FROM movements WHERE account_id = ? AND date = ? AND amount BETWEEN ? AND ? ORDER BY id`,
		accountID, date, minCents, maxCents)
}

// ListByAccount returns the newest movements first, up to limit (0 = all).
func (r *MovementRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE account_id = ? ORDER BY date DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return r.query(ctx, query, accountID)
}

func (r *MovementRepo) Count(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func (r *MovementRepo) UpdateConceptAndCategory(ctx context.Context, id int64, concept string, categoryID *int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE movements SET concept = ?, category_id = ? WHERE id = ?`, concept, categoryID, id)
	return err
}

func (r *MovementRepo) first(ctx context.Context, query string, args ...any) (*Movement, error) {
	m, err := scanMovement(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MovementRepo) query(ctx context.Context, query string, args ...any) ([]Movement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(s scanner) (Movement, error) {
	var (
		m        Movement
		balance  sql.NullInt64
		category sql.NullInt64
		notes    sql.NullString
	)
	if err := s.Scan(&m.ID, &m.AccountID, &m.Date, &m.Concept, &m.OriginalConcept, &m.AmountCents,
		&balance, &category, &m.Fingerprint, &m.Reconciled, &notes, &m.CreatedAt); err != nil {
		return Movement{}, err
	}
	m.BalanceCents = nullInt64(balance)
	m.CategoryID = nullInt64(category)
	m.Notes = nullString(notes)
	return m, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
