package categorize

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/testutil"
)

func batchRecords(n int) []model.Record {
	records := make([]model.Record, n)
	for i := range records {
		switch i % 3 {
		case 0:
			records[i] = txn(fmt.Sprintf("UBER *TRIP %d", i), "25.00", "DEBIT")
		case 1:
			records[i] = txn(fmt.Sprintf("Supermercado %d", i), "80.00", "DEBIT")
		default:
			records[i] = txn(fmt.Sprintf("Outros %d", i), "5.00", "DEBIT")
		}
	}
	return records
}

func TestCategorizeBatch(t *testing.T) {
	for _, tc := range []struct {
		name      string
		threshold int
		workers   int
	}{
		{name: "sequential", threshold: 1000, workers: 4},
		{name: "parallel", threshold: 1, workers: 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, tenant, "Transporte", "Alimentação")
			ctx := context.Background()
			db.AddRule(rule("Uber", model.ConditionContains, model.FieldDescription, "uber", 1, db.MustGetCategory("Transporte").ID))
			db.AddRule(rule("Mercado", model.ConditionStartsWith, model.FieldDescription, "supermercado", 1, db.MustGetCategory("Alimentação").ID))

			store := &countingStore{Storage: db.Storage}
			cfg := DefaultConfig()
			cfg.ParallelThreshold = tc.threshold
			cfg.Workers = tc.workers
			svc := NewWithConfig(store, quietEngine(), cfg)

			records := batchRecords(90)
			var progress atomic.Int64
			results, err := svc.CategorizeBatch(ctx, tenant, records, WithProgress(func(int) {
				progress.Add(1)
			}))
			require.NoError(t, err)
			require.Len(t, results, len(records))

			for i, got := range results {
				want := []string{"Transporte", "Alimentação", DefaultCategoryName}[i%3]
				assert.Equal(t, want, got.Name, "record %d", i)
			}

			assert.Equal(t, int64(1), store.ruleFetches.Load())
			assert.Equal(t, int64(1), store.categoryLists.Load())
			assert.Zero(t, store.categoryLookups.Load())
			assert.Equal(t, int64(len(records)), progress.Load())

			stats, err := svc.Stats(ctx, tenant, results)
			require.NoError(t, err)
			assert.Equal(t, 90, stats.Total)
			assert.Equal(t, 60, stats.Categorized)
			assert.Equal(t, 30, stats.Uncategorized)
			assert.InDelta(t, 2.0/3.0, stats.Rate, 1e-9)
		})
	}
}

func TestCategorizeBatch_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t, tenant)
	store := &countingStore{Storage: db.Storage}
	svc := New(store, quietEngine())

	results, err := svc.CategorizeBatch(context.Background(), tenant, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, store.ruleFetches.Load())
}

func TestCategorizeBatch_InvalidRecordsGetDefault(t *testing.T) {
	svc, db := setup(t, "Transporte")
	db.AddRule(rule("Uber", model.ConditionContains, model.FieldDescription, "uber", 1, db.MustGetCategory("Transporte").ID))

	results, err := svc.CategorizeBatch(context.Background(), tenant, []model.Record{
		{"description": "UBER"},
		txn("UBER", "1", "DEBIT"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, DefaultCategoryName, results[0].Name)
	assert.Equal(t, "Transporte", results[1].Name)
}

func TestCategorizeBatch_Canceled(t *testing.T) {
	svc, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CategorizeBatch(ctx, tenant, batchRecords(3))
	assert.Error(t, err)
}
