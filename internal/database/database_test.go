package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/comptes/internal/database/repository"
)

func setupDatabaseTest(t *testing.T) (*sql.DB, string, string, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))
	// a second run is a no-op
	require.NoError(t, RunMigrations(dbPath, migrations))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath, migrations, ctx
}

func TestMigrationsVersion(t *testing.T) {
	t.Parallel()
	_, dbPath, migrations, _ := setupDatabaseTest(t)

	v, dirty, err := Version(dbPath, migrations)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(2), v)
}

func TestEnsureRootCategoriesIsIdempotent(t *testing.T) {
	t.Parallel()
	db, _, _, ctx := setupDatabaseTest(t)
	repos := repository.New(db)

	acc, err := repos.Accounts.Create(ctx, repository.Account{Number: "ES01", Bank: "caixabank"})
	require.NoError(t, err)
	require.NoError(t, EnsureRootCategories(ctx, repos.Categories, acc))
	require.NoError(t, EnsureRootCategories(ctx, repos.Categories, acc))

	cats, err := repos.Categories.ListByAccount(ctx, acc)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	require.Equal(t, RootIncome, cats[0].Name)
	require.Equal(t, RootExpense, cats[1].Name)
	require.True(t, IsRootName("despeses "))
	require.False(t, IsRootName("LLOGUER"))
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()
	db, _, _, ctx := setupDatabaseTest(t)

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := repository.NewAccountRepo(tx).Create(ctx, repository.Account{Number: "ES01", Bank: "caixabank"}); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	require.ErrorIs(t, err, sql.ErrTxDone)

	accounts, err := repository.NewAccountRepo(db).List(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)
}
