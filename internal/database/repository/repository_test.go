package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/comptes/internal/database"
	"github.com/jask/comptes/internal/database/repository"
)

func setupRepoTest(t *testing.T) (*sql.DB, repository.Repos, int64, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := repository.New(db)
	acc, err := repos.Accounts.Create(ctx, repository.Account{Number: "ES01", Bank: "caixabank"})
	require.NoError(t, err)
	return db, repos, acc, ctx
}

func fingerprint(c byte) string { return strings.Repeat(string(c), 64) }

func insert(t *testing.T, ctx context.Context, repos repository.Repos, m repository.Movement) int64 {
	id, err := repos.Movements.Insert(ctx, m)
	require.NoError(t, err)
	return id
}

func TestMovementLookups(t *testing.T) {
	t.Parallel()
	_, repos, acc, ctx := setupRepoTest(t)

	notes := "TARGETA 100%_OFF"
	balance := int64(5000)
	insert(t, ctx, repos, repository.Movement{AccountID: acc, Date: "2024-01-02", Concept: "B", OriginalConcept: "B", AmountCents: -250, Fingerprint: fingerprint('b'), BalanceCents: &balance})
	insert(t, ctx, repos, repository.Movement{AccountID: acc, Date: "2024-01-01", Concept: "A", OriginalConcept: "A", AmountCents: 1000, Fingerprint: fingerprint('a'), Notes: &notes})

	found, err := repos.Movements.FindByFingerprints(ctx, acc, []string{fingerprint('b'), fingerprint('a'), fingerprint('z')})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "A", found[0].Concept)

	exists, err := repos.Movements.ExistsFingerprint(ctx, acc, fingerprint('a'))
	require.NoError(t, err)
	require.True(t, exists)

	set, err := repos.Movements.Fingerprints(ctx, acc)
	require.NoError(t, err)
	require.Len(t, set, 2)

	latest, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, "B", latest.Concept)

	withBalance, err := repos.Movements.LatestWithBalance(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, int64(5000), *withBalance.BalanceCents)

	inRange, err := repos.Movements.FindByDateAndAmount(ctx, acc, "2024-01-02", -251, -249)
	require.NoError(t, err)
	require.Len(t, inRange, 1)

	// LIKE wildcards in the term are literal, and only categorised rows count
	none, err := repos.Movements.LatestCategorizedByNotes(ctx, acc, "100%_OFF")
	require.NoError(t, err)
	require.Nil(t, none)

	cat, err := repos.Categories.CreateNext(ctx, acc, "OFERTES", nil)
	require.NoError(t, err)
	require.NoError(t, repos.Movements.UpdateConceptAndCategory(ctx, found[0].ID, "A", &cat.ID))
	hit, err := repos.Movements.LatestCategorizedByNotes(ctx, acc, "100%_OFF")
	require.NoError(t, err)
	require.NotNil(t, hit)
	miss, err := repos.Movements.LatestCategorizedByNotes(ctx, acc, "100%XOFF")
	require.NoError(t, err)
	require.Nil(t, miss)
}

func TestFingerprintIsUnique(t *testing.T) {
	t.Parallel()
	_, repos, acc, ctx := setupRepoTest(t)

	m := repository.Movement{AccountID: acc, Date: "2024-01-01", Concept: "A", OriginalConcept: "A", AmountCents: 1, Fingerprint: fingerprint('a')}
	insert(t, ctx, repos, m)
	_, err := repos.Movements.Insert(ctx, m)
	require.Error(t, err)

	m.Fingerprint = "short"
	_, err = repos.Movements.Insert(ctx, m)
	require.Error(t, err)
}

func TestCategorySiblingsAndSequence(t *testing.T) {
	t.Parallel()
	_, repos, acc, ctx := setupRepoTest(t)

	parent, err := repos.Categories.CreateNext(ctx, acc, "DESPESES", nil)
	require.NoError(t, err)
	first, err := repos.Categories.CreateNext(ctx, acc, "LLOGUER", &parent.ID)
	require.NoError(t, err)
	second, err := repos.Categories.CreateNext(ctx, acc, "LLUM", &parent.ID)
	require.NoError(t, err)
	require.Equal(t, 0, first.SortOrder)
	require.Equal(t, 1, second.SortOrder)

	found, err := repos.Categories.FindByNameAndParent(ctx, acc, "llum", &parent.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, found.ID)
	missing, err := repos.Categories.FindByNameAndParent(ctx, acc, "LLUM", nil)
	require.NoError(t, err)
	require.Nil(t, missing)

	// deleting the parent cascades to its children
	require.NoError(t, repos.Categories.Delete(ctx, parent.ID))
	n, err := repos.Categories.Count(ctx, &acc)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, repos.Categories.ResetSequence(ctx))
	again, err := repos.Categories.CreateNext(ctx, acc, "NOU", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), again.ID)
}

func TestImportBatches(t *testing.T) {
	t.Parallel()
	_, repos, acc, ctx := setupRepoTest(t)

	require.NoError(t, repos.Batches.Insert(ctx, repository.ImportBatch{ID: "b1", AccountID: acc, Bank: "caixabank", FileName: "gener.xls", Created: 3}))
	batches, err := repos.Batches.ListByAccount(ctx, acc)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, 3, batches[0].Created)
	require.False(t, batches[0].ImportedAt.IsZero())

	require.NoError(t, repos.Accounts.Delete(ctx, acc))
	batches, err = repos.Batches.ListByAccount(ctx, acc)
	require.NoError(t, err)
	require.Empty(t, batches)
}
