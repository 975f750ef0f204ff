package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

func TestCreateCategory(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	cat := &model.Category{TenantID: testTenant, Name: "Receitas", IsActive: true}
	require.NoError(t, store.CreateCategory(ctx, cat))

	assert.Positive(t, cat.ID)
	assert.Equal(t, model.DefaultCategoryColor, cat.Color)
	assert.False(t, cat.CreatedAt.IsZero())

	got, err := store.GetCategory(ctx, testTenant, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Receitas", got.Name)
	assert.Equal(t, model.DefaultCategoryColor, got.Color)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsSystem)
	assert.Nil(t, got.ParentID)
}

func TestCreateCategory_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		cat     *model.Category
		wantErr error
		name    string
	}{
		{name: "nil category", cat: nil, wantErr: ErrNilParameter},
		{name: "missing tenant", cat: &model.Category{Name: "X"}, wantErr: ErrInvalidCategory},
		{name: "missing name", cat: &model.Category{TenantID: testTenant, Name: " "}, wantErr: ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateCategory(ctx, tt.cat)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	createTestCategory(t, store, testTenant, "Despesas", nil)

	err := store.CreateCategory(ctx, &model.Category{TenantID: testTenant, Name: "Despesas"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// Names are unique per tenant only.
	require.NoError(t, store.CreateCategory(ctx, &model.Category{TenantID: "globex", Name: "Despesas"}))
}

func TestGetCategory_NotFound(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	_, err := store.GetCategory(ctx, testTenant, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)

	cat := createTestCategory(t, store, testTenant, "Despesas", nil)
	_, err = store.GetCategory(ctx, "globex", cat.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetCategoryByName(ctx, testTenant, "Nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListChildren(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	parent := createTestCategory(t, store, testTenant, "Despesas", nil)
	createTestCategory(t, store, testTenant, "Transporte", &parent.ID)
	food := createTestCategory(t, store, testTenant, "Alimentação", &parent.ID)
	inactive := createTestCategory(t, store, testTenant, "Lazer", &parent.ID)
	_, err := store.SetCategoriesActive(ctx, testTenant, []int64{inactive.ID}, false)
	require.NoError(t, err)

	all, err := store.ListChildren(ctx, testTenant, parent.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alimentação", "Lazer", "Transporte"}, categoryNames(all))

	active, err := store.ListChildren(ctx, testTenant, parent.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alimentação", "Transporte"}, categoryNames(active))

	none, err := store.ListChildren(ctx, testTenant, food.ID, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateCategory(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	parent := createTestCategory(t, store, testTenant, "Despesas", nil)
	cat := createTestCategory(t, store, testTenant, "Mercado", nil)

	cat.Name = "Supermercado"
	cat.Color = "#FF9800"
	cat.ParentID = &parent.ID
	require.NoError(t, store.UpdateCategory(ctx, cat))

	got, err := store.GetCategory(ctx, testTenant, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Supermercado", got.Name)
	assert.Equal(t, "#FF9800", got.Color)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, parent.ID, *got.ParentID)

	missing := &model.Category{ID: 999, TenantID: testTenant, Name: "Ghost"}
	assert.ErrorIs(t, store.UpdateCategory(ctx, missing), common.ErrNotFound)
}

func TestDeleteCategory_Cascades(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	parent := createTestCategory(t, store, testTenant, "Despesas", nil)
	child := createTestCategory(t, store, testTenant, "Alimentação", &parent.ID)
	grandchild := createTestCategory(t, store, testTenant, "Restaurantes", &child.ID)

	rule := &model.Rule{
		TenantID:      testTenant,
		Name:          "iFood",
		ConditionType: model.ConditionContains,
		FieldName:     model.FieldDescription,
		FieldValue:    "ifood",
		CategoryID:    grandchild.ID,
		Priority:      1,
		IsActive:      true,
	}
	require.NoError(t, store.CreateRule(ctx, rule))

	require.NoError(t, store.DeleteCategory(ctx, testTenant, parent.ID))

	for _, id := range []int64{parent.ID, child.ID, grandchild.ID} {
		_, err := store.GetCategory(ctx, testTenant, id)
		assert.ErrorIs(t, err, common.ErrNotFound)
	}
	_, err := store.GetRule(ctx, testTenant, rule.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.DeleteCategory(ctx, testTenant, parent.ID), common.ErrNotFound)
}

func TestSetCategoriesActive(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	a := createTestCategory(t, store, testTenant, "A", nil)
	b := createTestCategory(t, store, testTenant, "B", nil)
	foreign := createTestCategory(t, store, "globex", "C", nil)

	n, err := store.SetCategoriesActive(ctx, testTenant, []int64{a.ID, b.ID, foreign.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetCategory(ctx, testTenant, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	other, err := store.GetCategory(ctx, "globex", foreign.ID)
	require.NoError(t, err)
	assert.True(t, other.IsActive)

	n, err = store.SetCategoriesActive(ctx, testTenant, nil, true)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func categoryNames(cats []model.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names
}
