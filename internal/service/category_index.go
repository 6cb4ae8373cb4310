package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/database/repository"
)

// CategoryStore is the category persistence the index needs.
type CategoryStore interface {
	ListByAccount(ctx context.Context, accountID int64) ([]repository.Category, error)
	CreateNext(ctx context.Context, accountID int64, name string, parentID *int64) (repository.Category, error)
}

type siblingKey struct {
	parent int64 // 0 for roots
	name   string
}

type pathMatch struct {
	id int64
	ok bool
}

// CategoryIndex holds one account's category tree for the duration of a
// single import batch. Lookups never go back to the store; created nodes
// are added to the index as they are stored.
type CategoryIndex struct {
	accountID int64
	store     CategoryStore
	logger    *log.Logger

	cats     []repository.Category
	siblings map[siblingKey]int64
	paths    map[string]pathMatch
	tree     *Tree
}

// LoadCategoryIndex reads the account's categories once.
func LoadCategoryIndex(ctx context.Context, store CategoryStore, accountID int64, logger *log.Logger) (*CategoryIndex, error) {
	cats, err := store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	x := &CategoryIndex{
		accountID: accountID,
		store:     store,
		logger:    logger,
		siblings:  make(map[siblingKey]int64, len(cats)),
		paths:     make(map[string]pathMatch),
	}
	for _, c := range cats {
		x.add(c)
	}
	return x, nil
}

func (x *CategoryIndex) add(c repository.Category) {
	x.cats = append(x.cats, c)
	x.tree = nil
	key := siblingKey{name: strings.ToUpper(strings.TrimSpace(c.Name))}
	if c.ParentID != nil {
		key.parent = *c.ParentID
	}
	// the first sibling wins when names repeat
	if _, dup := x.siblings[key]; !dup {
		x.siblings[key] = c.ID
	}
}

// Find looks a name up among the children of parent (nil for roots).
func (x *CategoryIndex) Find(name string, parent *int64) (int64, bool) {
	key := siblingKey{name: strings.ToUpper(strings.TrimSpace(name))}
	if parent != nil {
		key.parent = *parent
	}
	id, ok := x.siblings[key]
	return id, ok
}

// Len reports how many categories the index holds.
func (x *CategoryIndex) Len() int { return len(x.cats) }

// FullPath renders id with its ancestors as "A > B > C".
func (x *CategoryIndex) FullPath(id int64) string {
	if x.tree == nil {
		t := BuildTree(x.cats)
		x.tree = &t
	}
	return x.tree.FullPath(id)
}

// Traverse walks a ':'-separated path from the roots. Empty segments are
// skipped. With create set, missing segments are stored upper-cased after
// their existing siblings; otherwise a missing segment fails the walk.
func (x *CategoryIndex) Traverse(ctx context.Context, path string, create bool) (int64, bool, error) {
	var parent *int64
	found := false
	for _, seg := range strings.Split(path, ":") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		id, ok := x.Find(seg, parent)
		if !ok {
			if !create {
				return 0, false, nil
			}
			c, err := x.store.CreateNext(ctx, x.accountID, strings.ToUpper(seg), parent)
			if err != nil {
				return 0, false, fmt.Errorf("create category %q: %w", seg, err)
			}
			x.add(c)
			x.logger.Info("created category", "account", x.accountID, "name", c.Name, "parent", parent)
			id = c.ID
		}
		parent = &id
		found = true
	}
	if !found {
		return 0, false, nil
	}
	return *parent, true, nil
}

// MatchPath resolves a source category path. The exact hierarchy is tried
// first without creating anything; then the path is placed under the
// expense or income root by the sign of amount, creating missing nodes,
// with the other root as fallback. Results are memoised per path.
func (x *CategoryIndex) MatchPath(ctx context.Context, path string, amount float64) (int64, bool) {
	path = strings.Trim(strings.TrimSpace(path), ":")
	if path == "" {
		return 0, false
	}
	if m, ok := x.paths[path]; ok {
		return m.id, m.ok
	}

	var m pathMatch
	if id, ok, err := x.Traverse(ctx, path, false); err == nil && ok {
		m = pathMatch{id: id, ok: true}
	} else {
		roots := []string{"DESPESES", "INGRESSOS"}
		if amount >= 0 {
			roots[0], roots[1] = roots[1], roots[0]
		}
		for _, root := range roots {
			id, ok, err := x.Traverse(ctx, root+":"+path, true)
			if err != nil {
				x.logger.Warn("category path creation failed", "account", x.accountID, "path", root+":"+path, "error", err)
				continue
			}
			if ok {
				m = pathMatch{id: id, ok: true}
				break
			}
		}
	}
	if !m.ok {
		x.logger.Warn("category path unresolved", "account", x.accountID, "path", path)
	}
	x.paths[path] = m
	return m.id, m.ok
}
