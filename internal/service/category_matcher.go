package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/database/repository"
)

// NotesLookup finds earlier categorised movements by notes text.
type NotesLookup interface {
	LatestCategorizedByNotes(ctx context.Context, accountID int64, term string) (*repository.Movement, error)
}

// DefaultNotesMinTerm is the shortest notes term worth searching for.
const DefaultNotesMinTerm = 5

var cardPrefix = regexp.MustCompile(`(?i)^TARGETA\s+\*\d+\s+(.+)$`)

// CategoryMatcher assigns categories to a batch of movements.
type CategoryMatcher struct {
	Index      *CategoryIndex
	Notes      NotesLookup
	MinTermLen int
	Logger     *log.Logger
}

// Match resolves a category for every movement in place. Movements with a
// source category path use the tree index; the rest borrow the category of
// the latest movement with similar notes. Failures leave the movement
// uncategorised.
func (m *CategoryMatcher) Match(ctx context.Context, accountID int64, ms []Movement) error {
	for i := range ms {
		mv := &ms[i]
		if mv.CategoryPath != nil && strings.TrimSpace(*mv.CategoryPath) != "" {
			if id, ok := m.Index.MatchPath(ctx, *mv.CategoryPath, mv.Amount); ok {
				mv.CategoryID = &id
				mv.CategoryDisplay = m.Index.FullPath(id)
			}
			continue
		}
		id, ok, err := m.byNotes(ctx, accountID, mv.Notes)
		if err != nil {
			return err
		}
		if ok {
			mv.CategoryID = &id
			mv.CategoryDisplay = m.Index.FullPath(id)
		}
	}
	return nil
}

func (m *CategoryMatcher) byNotes(ctx context.Context, accountID int64, notes *string) (int64, bool, error) {
	if notes == nil {
		return 0, false, nil
	}
	term := NotesSearchTerm(*notes)
	minLen := m.MinTermLen
	if minLen <= 0 {
		minLen = DefaultNotesMinTerm
	}
	if utf8.RuneCountInString(term) < minLen {
		return 0, false, nil
	}
	prev, err := m.Notes.LatestCategorizedByNotes(ctx, accountID, term)
	if err != nil {
		return 0, false, fmt.Errorf("match by notes: %w", err)
	}
	if prev == nil || prev.CategoryID == nil {
		return 0, false, nil
	}
	m.Logger.Info("category matched by notes", "term", term, "movement", prev.ID, "category", *prev.CategoryID)
	return *prev.CategoryID, true, nil
}

// NotesSearchTerm strips a leading card prefix such as "TARGETA *6563 ".
func NotesSearchTerm(notes string) string {
	notes = strings.TrimSpace(notes)
	if sub := cardPrefix.FindStringSubmatch(notes); sub != nil {
		return strings.TrimSpace(sub[1])
	}
	return notes
}
