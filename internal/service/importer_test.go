package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/comptes/internal/extract"
)

func TestImporterAssignsIDsInDateOrder(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")

	// newest first, with a same-day pair
	parsed := []extract.ParsedMovement{
		pm("2024-01-05", "E", 1),
		pm("2024-01-03", "C2", 2),
		pm("2024-01-03", "C1", 3),
		pm("2024-01-01", "A", 4),
	}
	im := &Importer{Logger: quietLogger(), ChunkSize: 2}
	stats, err := importInTx(ctx, db, im, acc, Annotate(acc, parsed))
	require.NoError(t, err)
	require.Equal(t, 4, stats.Created)

	rows, err := repos.Movements.ListByAccount(ctx, acc, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < len(rows); i++ {
		// newest first: a later date never has a lower id
		if rows[i-1].Date > rows[i].Date {
			require.Greater(t, rows[i-1].ID, rows[i].ID)
		}
	}
	require.Equal(t, "A", rows[3].Concept)
	require.Equal(t, "E", rows[0].Concept)
	// same-day rows keep file order once oriented oldest first
	require.Equal(t, "C2", rows[1].Concept)
	require.Equal(t, "C1", rows[2].Concept)
}

func TestImporterIsIdempotent(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	ms := Annotate(acc, []extract.ParsedMovement{movA, movB, movC})
	im := &Importer{Logger: quietLogger()}

	first, err := importInTx(ctx, db, im, acc, ms)
	require.NoError(t, err)
	require.Equal(t, 3, first.Created)

	second, err := importInTx(ctx, db, im, acc, ms)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 3, second.Skipped)

	n, err := repos.Movements.Count(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestImporterStoresCentsAndNotes(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	seed(t, ctx, db, acc, withBalance(pm("2024-01-01", "NOMINA", 1234.56), 2000.1))

	m, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, int64(123456), m.AmountCents)
	require.Equal(t, int64(200010), *m.BalanceCents)
	require.Equal(t, "NOMINA", m.OriginalConcept)
	require.Equal(t, "NOMINA", *m.Notes)
	require.Len(t, m.Fingerprint, 64)
}

func TestImporterReusesConceptMemory(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	seed(t, ctx, db, acc, pm("2024-01-01", "TRANSF 0042 XYZ", -50))

	prev, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	cat, err := repos.Categories.CreateNext(ctx, acc, "LLOGUER", nil)
	require.NoError(t, err)
	require.NoError(t, repos.Movements.UpdateConceptAndCategory(ctx, prev.ID, "Lloguer gener", &cat.ID))

	seed(t, ctx, db, acc, pm("2024-02-01", "TRANSF 0042 XYZ", -50))
	next, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, "2024-02-01", next.Date)
	require.Equal(t, "Lloguer gener", next.Concept)
	require.Equal(t, "TRANSF 0042 XYZ", next.OriginalConcept)
	require.Equal(t, cat.ID, *next.CategoryID)
}

func TestImporterKeepsEditedConcept(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	seed(t, ctx, db, acc, pm("2024-01-01", "BIZUM", -5))
	prev, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.NoError(t, repos.Movements.UpdateConceptAndCategory(ctx, prev.ID, "Sopar", nil))

	ms := Annotate(acc, []extract.ParsedMovement{pm("2024-01-02", "BIZUM", -7)})
	ms[0].Concept = "Cinema"
	ms[0].conceptEdited = true
	_, err = importInTx(ctx, db, &Importer{Logger: quietLogger()}, acc, ms)
	require.NoError(t, err)

	next, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, "Cinema", next.Concept)
	require.Equal(t, "BIZUM", next.OriginalConcept)
}

func TestImporterHonoursCancellation(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := importInTx(cancelled, db, &Importer{Logger: quietLogger()}, acc, Annotate(acc, []extract.ParsedMovement{movA}))
	require.Error(t, err)

	n, err := repos.Movements.Count(ctx, acc)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestImporterRollsBackOnMidBatchFailure(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")

	ms := Annotate(acc, []extract.ParsedMovement{movA, movB, movC})
	missing := int64(9999)
	ms[2].CategoryID = &missing
	ms[2].categoryEdited = true

	_, err := importInTx(ctx, db, &Importer{Logger: quietLogger(), ChunkSize: 1}, acc, ms)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"C"`)

	n, err := repos.Movements.Count(ctx, acc)
	require.NoError(t, err)
	require.Zero(t, n)
}
