package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-sqlite3"

	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/money"
)

// DefaultChunkSize is how many movements are written between progress checks.
const DefaultChunkSize = 100

// ImportStats counts what one import wrote.
type ImportStats struct {
	Created int
	Skipped int
	IDs     []int64
}

// Importer writes finalised movements to the ledger.
type Importer struct {
	Logger    *log.Logger
	ChunkSize int
}

// Import writes ms through repos, which should be bound to a transaction.
// Movements are written oldest first so ids ascend with dates. A movement
// whose fingerprint the account already holds is skipped.
func (im *Importer) Import(ctx context.Context, repos repository.Repos, accountID int64, ms []Movement) (ImportStats, error) {
	ordered := chronological(ms)
	chunk := im.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	var stats ImportStats
	for start := 0; start < len(ordered); start += chunk {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+chunk, len(ordered))
		for _, m := range ordered[start:end] {
			id, created, err := im.create(ctx, repos.Movements, accountID, m)
			if err != nil {
				return stats, fmt.Errorf("movement %s %q: %w", m.Date, m.Concept, err)
			}
			if !created {
				stats.Skipped++
				continue
			}
			stats.Created++
			stats.IDs = append(stats.IDs, id)
		}
		im.Logger.Debug("import chunk written", "account", accountID, "written", end, "total", len(ordered))
	}
	im.Logger.Info("movement import completed", "account", accountID, "created", stats.Created, "skipped", stats.Skipped)
	return stats, nil
}

func (im *Importer) create(ctx context.Context, movements *repository.MovementRepo, accountID int64, m Movement) (int64, bool, error) {
	exists, err := movements.ExistsFingerprint(ctx, accountID, m.Fingerprint)
	if err != nil {
		return 0, false, err
	}
	if exists {
		return 0, false, nil
	}

	original := m.OriginalConcept
	if original == "" {
		original = m.Concept
	}
	concept := m.Concept
	categoryID := m.CategoryID
	notes := m.Notes
	if notes == nil {
		notes = &original
	}

	// a manual correction made once sticks to later recurrences of the same raw concept
	prev, err := movements.LatestByOriginalConcept(ctx, accountID, original)
	if err != nil {
		return 0, false, err
	}
	if prev != nil {
		if !m.conceptEdited {
			concept = prev.Concept
		}
		if prev.CategoryID != nil && !m.categoryEdited {
			categoryID = prev.CategoryID
		}
		im.Logger.Debug("concept memory reused", "original", original, "concept", concept, "previous", prev.ID)
	}

	row := repository.Movement{
		AccountID:       accountID,
		Date:            m.Date,
		Concept:         concept,
		OriginalConcept: original,
		AmountCents:     money.ToCents(m.Amount),
		CategoryID:      categoryID,
		Fingerprint:     m.Fingerprint,
		Notes:           notes,
	}
	if m.Balance != nil {
		c := money.ToCents(*m.Balance)
		row.BalanceCents = &c
	}
	id, err := movements.Insert(ctx, row)
	if err != nil {
		// another writer stored the same fingerprint first
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// chronological orients ms oldest first and stable-sorts by date, so the
// earliest movement gets the lowest id whatever order the caller used.
func chronological(ms []Movement) []Movement {
	out := make([]Movement, len(ms))
	copy(out, ms)
	if len(out) > 1 && out[0].Date > out[len(out)-1].Date {
		for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
