package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/database/repository"
)

// CategoryCounts compares all categories with the ones that may be deleted.
type CategoryCounts struct {
	Total     int
	Deletable int
}

// CategoryMaintenanceService houses destructive category and data actions.
type CategoryMaintenanceService struct {
	DB     *sql.DB
	Logger *log.Logger
}

// DeleteForAccount removes every category of the account except its two
// permanent roots. Movements keep their rows with a null category.
func (s *CategoryMaintenanceService) DeleteForAccount(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		cats := repository.NewCategoryRepo(tx)
		list, err := cats.ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		n, err = deleteDeletable(ctx, cats, list)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete categories of account %d: %w", accountID, err)
	}
	s.Logger.Info("categories deleted", "account", accountID, "deleted", n)
	return n, nil
}

// DeleteAll removes every non-root category of every account.
func (s *CategoryMaintenanceService) DeleteAll(ctx context.Context) (int, error) {
	var n int
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		cats := repository.NewCategoryRepo(tx)
		list, err := cats.ListAll(ctx)
		if err != nil {
			return err
		}
		if n, err = deleteDeletable(ctx, cats, list); err != nil {
			return err
		}
		return cats.ResetSequence(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("delete all categories: %w", err)
	}
	s.Logger.Info("categories deleted", "deleted", n)
	return n, nil
}

// Counts reports how many categories exist and how many could be deleted.
// A nil accountID counts every account.
func (s *CategoryMaintenanceService) Counts(ctx context.Context, accountID *int64) (CategoryCounts, error) {
	cats := repository.NewCategoryRepo(s.DB)
	var (
		list []repository.Category
		err  error
	)
	if accountID == nil {
		list, err = cats.ListAll(ctx)
	} else {
		list, err = cats.ListByAccount(ctx, *accountID)
	}
	if err != nil {
		return CategoryCounts{}, err
	}
	c := CategoryCounts{Total: len(list)}
	for _, cat := range list {
		if !isPermanentRoot(cat) {
			c.Deletable++
		}
	}
	return c, nil
}

// ResetSequence restarts category ids when no category is left.
func (s *CategoryMaintenanceService) ResetSequence(ctx context.Context) error {
	return repository.NewCategoryRepo(s.DB).ResetSequence(ctx)
}

// Reset wipes all user data. The schema is kept.
func (s *CategoryMaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"import_batches", "movements", "categories", "accounts"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	s.Logger.Warn("all data wiped")
	return nil
}

func isPermanentRoot(c repository.Category) bool {
	return c.ParentID == nil && database.IsRootName(c.Name)
}

// deleteDeletable removes the non-root categories of list, deepest first.
func deleteDeletable(ctx context.Context, cats *repository.CategoryRepo, list []repository.Category) (int, error) {
	tree := BuildTree(list)
	var doomed []TreeNode
	tree.Walk(func(n TreeNode) {
		if !isPermanentRoot(n.Category) {
			doomed = append(doomed, n)
		}
	})
	sort.SliceStable(doomed, func(i, j int) bool { return doomed[i].Depth > doomed[j].Depth })
	for _, n := range doomed {
		if err := cats.Delete(ctx, n.Category.ID); err != nil {
			return 0, fmt.Errorf("delete category %d: %w", n.Category.ID, err)
		}
	}
	return len(doomed), nil
}
