package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/extract"
)

func ptr[T any](v T) *T { return &v }

func TestBuildTree(t *testing.T) {
	t.Parallel()
	cats := []repository.Category{
		{ID: 3, Name: "PIS", ParentID: ptr(int64(2))},
		{ID: 1, Name: "Despeses"},
		{ID: 2, Name: "LLOGUER", ParentID: ptr(int64(1))},
		{ID: 4, Name: "ORFE", ParentID: ptr(int64(99))},
	}
	tree := BuildTree(cats)
	require.Len(t, tree.Roots, 2)
	require.Equal(t, "Despeses > LLOGUER > PIS", tree.FullPath(3))
	require.Equal(t, "ORFE", tree.FullPath(4))
	require.Empty(t, tree.FullPath(42))

	i, ok := tree.Index(3)
	require.True(t, ok)
	require.Equal(t, 2, tree.Nodes[i].Depth)

	var order []string
	tree.Walk(func(n TreeNode) { order = append(order, n.Category.Name) })
	require.Equal(t, []string{"Despeses", "LLOGUER", "PIS", "ORFE"}, order)
}

func TestMatchPathCreatesUnderExpenseRoot(t *testing.T) {
	t.Parallel()
	_, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")

	index, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)
	require.Equal(t, 2, index.Len())

	id, ok := index.MatchPath(ctx, "Lloguer:Pis", -650)
	require.True(t, ok)
	require.Equal(t, "Despeses > LLOGUER > PIS", index.FullPath(id))
	n, err := repos.Categories.Count(ctx, &acc)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	// memoised within the batch
	again, ok := index.MatchPath(ctx, ":Lloguer:Pis:", -10)
	require.True(t, ok)
	require.Equal(t, id, again)

	// a fresh batch finds the created nodes without adding more
	fresh, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)
	other, ok := fresh.MatchPath(ctx, "lloguer:pis", -1)
	require.True(t, ok)
	require.Equal(t, id, other)
	n, err = repos.Categories.Count(ctx, &acc)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestMatchPathIncomeAndExactHierarchy(t *testing.T) {
	t.Parallel()
	_, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	index, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)

	id, ok := index.MatchPath(ctx, "Nomina", 1500)
	require.True(t, ok)
	require.Equal(t, "Ingressos > NOMINA", index.FullPath(id))

	// an explicit root path resolves exactly
	exact, ok := index.MatchPath(ctx, "Ingressos:Nomina", -3)
	require.True(t, ok)
	require.Equal(t, id, exact)

	_, ok = index.MatchPath(ctx, " : ", -3)
	require.False(t, ok)
}

func TestTraverseWithoutCreate(t *testing.T) {
	t.Parallel()
	_, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	index, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)

	_, ok, err := index.Traverse(ctx, "Despeses:Cotxe", false)
	require.NoError(t, err)
	require.False(t, ok)

	id, ok, err := index.Traverse(ctx, "DESPESES::Cotxe", true)
	require.NoError(t, err)
	require.True(t, ok)
	c, err := repos.Categories.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "COTXE", c.Name)
}

func TestNotesSearchTerm(t *testing.T) {
	t.Parallel()
	require.Equal(t, "FARMACIA PLA", NotesSearchTerm("TARGETA *6563 FARMACIA PLA"))
	require.Equal(t, "FARMACIA PLA", NotesSearchTerm("targeta *1 FARMACIA PLA "))
	require.Equal(t, "REBUT LLUM", NotesSearchTerm("REBUT LLUM"))
}

func TestCategoryMatcherByNotes(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	seed(t, ctx, db, acc, pm("2024-01-01", "FARMACIA PLA", -12), pm("2024-01-02", "BAR", -2))

	cat, err := repos.Categories.CreateNext(ctx, acc, "SALUT", nil)
	require.NoError(t, err)
	rows, err := repos.Movements.ListByAccount(ctx, acc, 0)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, repos.Movements.UpdateConceptAndCategory(ctx, r.ID, r.Concept, &cat.ID))
	}

	index, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)
	m := &CategoryMatcher{Index: index, Notes: repos.Movements, Logger: quietLogger()}

	card := pm("2024-02-01", "TARGETA *6563", -8)
	card.Notes = ptr("TARGETA *6563 FARMACIA PLA")
	short := pm("2024-02-02", "BAR", -3)
	short.Notes = ptr("BAR")
	unknown := pm("2024-02-03", "X", -1)
	unknown.Notes = ptr("LLIBRERIA NOVA")

	ms := Annotate(acc, []extract.ParsedMovement{card, short, unknown})
	require.NoError(t, m.Match(ctx, acc, ms))
	require.Equal(t, cat.ID, *ms[0].CategoryID)
	require.Equal(t, "SALUT", ms[0].CategoryDisplay)
	require.Nil(t, ms[1].CategoryID)
	require.Nil(t, ms[2].CategoryID)
}

const categoryExport = "!Type:Cat\nNLloguer\nE\n^\nNLloguer:Pis\nE\n^\nNNomina\nI\n^\n"

func TestCategoryImport(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	svc := &CategoryImportService{DB: db, Logger: quietLogger()}

	cats, issues := extract.ParseCategories([]byte(categoryExport), quietLogger())
	require.Empty(t, issues)
	require.Len(t, cats, 3)

	warnings, err := svc.Validate(ctx, acc, cats)
	require.NoError(t, err)
	require.Empty(t, warnings)

	res, err := svc.Import(ctx, acc, cats)
	require.NoError(t, err)
	require.Equal(t, 3, res.Created)
	require.Zero(t, res.Skipped)

	all, err := repos.Categories.ListByAccount(ctx, acc)
	require.NoError(t, err)
	tree := BuildTree(all)
	var paths []string
	tree.Walk(func(n TreeNode) { paths = append(paths, tree.FullPath(n.Category.ID)) })
	require.Contains(t, paths, "Despeses > LLOGUER > PIS")
	require.Contains(t, paths, "Ingressos > NOMINA")

	again, err := svc.Import(ctx, acc, cats)
	require.NoError(t, err)
	require.Zero(t, again.Created)
	require.Equal(t, 3, again.Skipped)

	warnings, err = svc.Validate(ctx, acc, cats)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0], "ja existeix")
}

func TestCategoryValidateNearDuplicates(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	svc := &CategoryImportService{DB: db, Logger: quietLogger()}

	cats, _ := extract.ParseCategories([]byte("!Type:Cat\nNSuper\nE\n^\nNSupers\nE\n^\nNCotxe\nE\n^\n"), quietLogger())
	warnings, err := svc.Validate(ctx, acc, cats)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.True(t, strings.HasPrefix(warnings[0], "Categories germanes duplicades"))
}

func TestCategoryImportUnknownAccount(t *testing.T) {
	t.Parallel()
	db, _, ctx := setupServiceTest(t)
	svc := &CategoryImportService{DB: db, Logger: quietLogger()}

	_, err := svc.Import(ctx, 999, nil)
	var notFound AccountNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "El compte corrent amb ID 999 no existeix.", err.Error())
}

func TestCategoryMaintenance(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	other := createAccount(t, ctx, repos, "ES02")

	imp := &CategoryImportService{DB: db, Logger: quietLogger()}
	cats, _ := extract.ParseCategories([]byte(categoryExport), quietLogger())
	_, err := imp.Import(ctx, acc, cats)
	require.NoError(t, err)
	_, err = imp.Import(ctx, other, cats)
	require.NoError(t, err)

	seed(t, ctx, db, acc, movA)
	index, err := LoadCategoryIndex(ctx, repos.Categories, acc, quietLogger())
	require.NoError(t, err)
	pis, ok, err := index.Traverse(ctx, "Despeses:Lloguer:Pis", false)
	require.NoError(t, err)
	require.True(t, ok)
	m, err := repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.NoError(t, repos.Movements.UpdateConceptAndCategory(ctx, m.ID, m.Concept, &pis))

	svc := &CategoryMaintenanceService{DB: db, Logger: quietLogger()}
	counts, err := svc.Counts(ctx, &acc)
	require.NoError(t, err)
	require.Equal(t, CategoryCounts{Total: 5, Deletable: 3}, counts)

	n, err := svc.DeleteForAccount(ctx, acc)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	m, err = repos.Movements.Latest(ctx, acc)
	require.NoError(t, err)
	require.Nil(t, m.CategoryID)

	counts, err = svc.Counts(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, CategoryCounts{Total: 7, Deletable: 3}, counts)

	n, err = svc.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	total, err := repos.Categories.Count(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 4, total)
}

func TestMaintenanceReset(t *testing.T) {
	t.Parallel()
	db, repos, ctx := setupServiceTest(t)
	acc := createAccount(t, ctx, repos, "ES01")
	seed(t, ctx, db, acc, movA, movB)

	svc := &CategoryMaintenanceService{DB: db, Logger: quietLogger()}
	require.NoError(t, svc.Reset(ctx))

	accounts, err := repos.Accounts.List(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)
	total, err := repos.Categories.Count(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, total)
}
