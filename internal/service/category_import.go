package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/extract"
)

// CategoryImportResult counts the outcome of a category import.
type CategoryImportResult struct {
	Created  int
	Skipped  int
	Warnings []string
}

// CategoryImportService loads KMyMoney category exports into an account.
type CategoryImportService struct {
	DB     *sql.DB
	Logger *log.Logger
}

// Validate reports near-duplicate siblings within the export and names the
// account already has. It writes nothing.
func (s *CategoryImportService) Validate(ctx context.Context, accountID int64, cats []extract.ParsedCategory) ([]string, error) {
	repos := repository.New(s.DB)
	if err := requireAccount(ctx, repos, accountID); err != nil {
		return nil, err
	}
	var warnings []string

	byParent := map[string][]string{}
	var parents []string
	for _, c := range cats {
		if _, ok := byParent[c.ParentPath]; !ok {
			parents = append(parents, c.ParentPath)
		}
		byParent[c.ParentPath] = append(byParent[c.ParentPath], c.Name)
	}
	for _, parent := range parents {
		names := byParent[parent]
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				if levenshtein.ComputeDistance(names[i], names[j]) <= 1 {
					label := parent
					if label == "" {
						label = "(arrel)"
					}
					warnings = append(warnings, fmt.Sprintf("Categories germanes duplicades sota '%s': %s, %s", label, names[i], names[j]))
				}
			}
		}
	}

	index, err := LoadCategoryIndex(ctx, repos.Categories, accountID, s.Logger)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		if _, ok, _ := index.Traverse(ctx, rootFor(c.Kind)+":"+c.FullPath, false); ok {
			warnings = append(warnings, fmt.Sprintf("La categoria '%s' ja existeix i no es crearà de nou.", c.FullPath))
		}
	}
	return warnings, nil
}

// Import creates the parsed categories under the root matching their kind,
// parents before children, in one transaction. Existing nodes are skipped.
func (s *CategoryImportService) Import(ctx context.Context, accountID int64, cats []extract.ParsedCategory) (CategoryImportResult, error) {
	ordered := make([]extract.ParsedCategory, len(cats))
	copy(ordered, cats)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Level < ordered[j].Level })

	var res CategoryImportResult
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		repos := repository.New(tx)
		if err := requireAccount(ctx, repos, accountID); err != nil {
			return err
		}
		if err := database.EnsureRootCategories(ctx, repos.Categories, accountID); err != nil {
			return err
		}
		index, err := LoadCategoryIndex(ctx, repos.Categories, accountID, s.Logger)
		if err != nil {
			return err
		}
		for _, c := range ordered {
			root := rootFor(c.Kind)
			if _, ok, _ := index.Traverse(ctx, root+":"+c.FullPath, false); ok {
				res.Skipped++
				continue
			}
			if c.ParentPath != "" {
				if _, ok, _ := index.Traverse(ctx, root+":"+c.ParentPath, false); !ok {
					res.Warnings = append(res.Warnings, fmt.Sprintf("No s'ha trobat el pare per '%s' (pare: %s)", c.Name, c.ParentPath))
					res.Skipped++
					continue
				}
			}
			if _, _, err := index.Traverse(ctx, root+":"+c.FullPath, true); err != nil {
				return err
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return CategoryImportResult{}, err
	}
	s.Logger.Info("categories imported", "account", accountID, "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

func rootFor(kind extract.CategoryKind) string {
	if kind == extract.KindIncome {
		return strings.ToUpper(database.RootIncome)
	}
	return strings.ToUpper(database.RootExpense)
}

func requireAccount(ctx context.Context, repos repository.Repos, accountID int64) error {
	acc, err := repos.Accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return AccountNotFoundError{ID: accountID}
	}
	return nil
}
