package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/comptes/internal/database/repository"
)

// Permanent root categories every account owns.
const (
	RootIncome  = "Ingressos"
	RootExpense = "Despeses"
)

// IsRootName reports whether name is one of the permanent roots.
func IsRootName(name string) bool {
	n := strings.ToUpper(strings.TrimSpace(name))
	return n == strings.ToUpper(RootIncome) || n == strings.ToUpper(RootExpense)
}

// EnsureRootCategories creates the income and expense roots for an account
// when missing. It is idempotent and safe to run on every import.
func EnsureRootCategories(ctx context.Context, cats *repository.CategoryRepo, accountID int64) error {
	for order, name := range []string{RootIncome, RootExpense} {
		existing, err := cats.FindByNameAndParent(ctx, accountID, name, nil)
		if err != nil {
			return fmt.Errorf("find root %s: %w", name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := cats.Create(ctx, repository.Category{AccountID: accountID, Name: name, SortOrder: order}); err != nil {
			return fmt.Errorf("create root %s: %w", name, err)
		}
	}
	return nil
}
