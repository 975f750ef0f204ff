package categorize

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/rules"
	"github.com/Veraticus/spice-categorizer/internal/service"
	"github.com/Veraticus/spice-categorizer/internal/testutil"
)

const tenant = "acme"

func quietEngine() *rules.Engine {
	return rules.NewEngine(rules.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func setup(t *testing.T, paths ...string) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, tenant, paths...)
	return New(db.Storage, quietEngine()), db
}

func txn(description, amount, txnType string) model.Record {
	return model.NewRecord(description, decimal.RequireFromString(amount), txnType)
}

func rule(name string, ct model.ConditionType, field model.FieldName, value string, priority int, categoryID int64) model.Rule {
	return model.Rule{
		Name:          name,
		ConditionType: ct,
		FieldName:     field,
		FieldValue:    value,
		Priority:      priority,
		CategoryID:    categoryID,
		IsActive:      true,
	}
}

// countingStore counts rule and category fetches issued against the wrapped store.
type countingStore struct {
	service.Storage
	ruleFetches     atomic.Int64
	categoryLists   atomic.Int64
	categoryLookups atomic.Int64
	extraRules      []model.Rule
}

func (s *countingStore) GetActiveRules(ctx context.Context, tenantID string) ([]model.Rule, error) {
	s.ruleFetches.Add(1)
	out, err := s.Storage.GetActiveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return append(s.extraRules, out...), nil
}

func (s *countingStore) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	s.categoryLists.Add(1)
	return s.Storage.ListCategories(ctx, tenantID)
}

func (s *countingStore) GetCategory(ctx context.Context, tenantID string, id int64) (*model.Category, error) {
	s.categoryLookups.Add(1)
	return s.Storage.GetCategory(ctx, tenantID, id)
}

func TestCategorize_Scenarios(t *testing.T) {
	svc, db := setup(t, "Despesas > Alimentação", "Alto Valor", "Transferências > PIX", "Baixa Prioridade")
	ctx := context.Background()

	db.AddRule(rule("Supermercado", model.ConditionContains, model.FieldDescription, "supermercado", 10, db.MustGetCategory("Alimentação").ID))
	db.AddRule(rule("Alto valor", model.ConditionGreaterThan, model.FieldAmount, "100.00", 1, db.MustGetCategory("Alto Valor").ID))
	db.AddRule(rule("PIX numerado", model.ConditionRegex, model.FieldDescription, `^PIX.*\d{4}`, 5, db.MustGetCategory("PIX").ID))

	def, err := svc.DefaultCategory(ctx, tenant)
	require.NoError(t, err)

	tests := []struct {
		record model.Record
		name   string
		want   string
	}{
		{name: "contains match", record: txn("Compra no supermercado", "50.00", "DEBIT"), want: "Alimentação"},
		{name: "amount above threshold", record: txn("Notebook", "150.00", "DEBIT"), want: "Alto Valor"},
		{name: "amount equal to threshold", record: txn("Notebook", "100.00", "DEBIT"), want: def.Name},
		{name: "regex match", record: txn("PIX para João 1234", "10.00", "DEBIT"), want: "PIX"},
		{name: "regex without digits", record: txn("PIX para João", "10.00", "DEBIT"), want: def.Name},
		{name: "no rule matches", record: txn("Transferência bancária", "100.00", "DEBIT"), want: def.Name},
		{name: "higher priority wins", record: txn("SUPERMERCADO atacado", "500.00", "DEBIT"), want: "Alimentação"},
		{name: "missing required field", record: model.Record{"description": "Compra no supermercado"}, want: def.Name},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Categorize(ctx, tenant, tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestCategorize_TieBreaksByName(t *testing.T) {
	svc, db := setup(t, "Mobilidade", "Transporte")
	ctx := context.Background()

	db.AddRule(rule("zz uber", model.ConditionContains, model.FieldDescription, "uber", 5, db.MustGetCategory("Transporte").ID))
	db.AddRule(rule("aa uber", model.ConditionContains, model.FieldDescription, "uber", 5, db.MustGetCategory("Mobilidade").ID))

	got, err := svc.Categorize(ctx, tenant, txn("Uber *trip", "23.90", "DEBIT"))
	require.NoError(t, err)
	assert.Equal(t, "Mobilidade", got.Name)
}

func TestCategorize_InactiveRulesIgnored(t *testing.T) {
	svc, db := setup(t, "Transporte")
	ctx := context.Background()

	inactive := rule("Uber", model.ConditionContains, model.FieldDescription, "uber", 10, db.MustGetCategory("Transporte").ID)
	inactive.IsActive = false
	db.AddRule(inactive)

	got, err := svc.Categorize(ctx, tenant, txn("UBER", "10", "DEBIT"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryName, got.Name)
}

func TestCategorize_EditedRuleIsNotStale(t *testing.T) {
	svc, db := setup(t, "Transporte")
	ctx := context.Background()

	r := db.AddRule(rule("Corridas", model.ConditionContains, model.FieldDescription, "uber", 1, db.MustGetCategory("Transporte").ID))
	record := txn("99 POP corrida", "18.00", "DEBIT")

	got, err := svc.Categorize(ctx, tenant, record)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryName, got.Name)

	r.FieldValue = "99 pop"
	require.NoError(t, db.Storage.UpdateRule(ctx, &r))

	got, err = svc.Categorize(ctx, tenant, record)
	require.NoError(t, err)
	assert.Equal(t, "Transporte", got.Name)
}

func TestCategorize_CorruptRuleIsSkipped(t *testing.T) {
	db := testutil.SetupTestDB(t, tenant, "Transporte")
	ctx := context.Background()
	transporte := db.MustGetCategory("Transporte")

	db.AddRule(rule("Uber", model.ConditionContains, model.FieldDescription, "uber", 1, transporte.ID))

	corrupt := rule("Corrupt", model.ConditionType("FUZZY"), model.FieldDescription, "uber", 100, transporte.ID)
	corrupt.ID = 9999
	store := &countingStore{Storage: db.Storage, extraRules: []model.Rule{corrupt}}

	engine := quietEngine()
	svc := New(store, engine)

	got, err := svc.Categorize(ctx, tenant, txn("UBER trip", "10", "DEBIT"))
	require.NoError(t, err)
	assert.Equal(t, "Transporte", got.Name)
	assert.Equal(t, int64(1), engine.Metrics().CompileErrors)
}

func TestActiveRules_Ordering(t *testing.T) {
	svc, db := setup(t, "C")
	ctx := context.Background()
	catID := db.MustGetCategory("C").ID

	for _, r := range []model.Rule{
		rule("b", model.ConditionContains, model.FieldDescription, "x", 1, catID),
		rule("c", model.ConditionContains, model.FieldDescription, "x", 10, catID),
		rule("a", model.ConditionContains, model.FieldDescription, "x", 1, catID),
		rule("d", model.ConditionContains, model.FieldDescription, "x", 10, catID),
	} {
		db.AddRule(r)
	}
	off := rule("e", model.ConditionContains, model.FieldDescription, "x", 50, catID)
	off.IsActive = false
	db.AddRule(off)

	active, err := svc.ActiveRules(ctx, tenant)
	require.NoError(t, err)

	names := make([]string, len(active))
	for i, r := range active {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, names)

	_, err = svc.ActiveRules(ctx, "")
	assert.Error(t, err)
}

func TestDefaultCategory_Idempotent(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	first, err := svc.DefaultCategory(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryName, first.Name)
	assert.Equal(t, model.DefaultCategoryColor, first.Color)
	assert.True(t, first.IsSystem)

	second, err := svc.DefaultCategory(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	cats, err := db.Storage.ListCategories(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestDefaultCategory_ConcurrentCallers(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat, err := svc.DefaultCategory(ctx, tenant)
			errs[i] = err
			if cat != nil {
				ids[i] = cat.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	cats, err := db.Storage.ListCategories(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestDefaultCategory_CustomName(t *testing.T) {
	db := testutil.SetupTestDB(t, tenant)
	svc := NewWithConfig(db.Storage, quietEngine(), Config{DefaultCategoryName: "Uncategorized"})

	cat, err := svc.DefaultCategory(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "Uncategorized", cat.Name)
}

func TestDefaultCategory_TenantsAreIsolated(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.DefaultCategory(ctx, "tenant-a")
	require.NoError(t, err)
	b, err := svc.DefaultCategory(ctx, "tenant-b")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
