// Package testutil provides test helpers backed by an in-memory SQLite store.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/service"
	"github.com/Veraticus/spice-categorizer/internal/storage"
)

// PathSeparator separates category names in a hierarchy path.
const PathSeparator = " > "

// TestDB represents a migrated test database scoped to a single tenant.
type TestDB struct {
	Storage    service.Storage
	t          *testing.T
	categories map[string]model.Category
	Tenant     string
}

// SetupTestDB creates a new in-memory test database for tenant.
// Each path is seeded as a chain of categories, e.g. "Despesas > Alimentação".
//
// Example:
//
//	db := testutil.SetupTestDB(t, "acme",
//		"Despesas > Alimentação > Restaurantes",
//		"Receitas",
//	)
func SetupTestDB(t *testing.T, tenant string, paths ...string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage:    store,
		Tenant:     tenant,
		categories: make(map[string]model.Category),
		t:          t,
	}
	for _, path := range paths {
		db.AddPath(path)
	}
	return db
}

// AddPath creates every missing category along path and returns the leaf.
func (db *TestDB) AddPath(path string) model.Category {
	db.t.Helper()

	var parentID *int64
	var leaf model.Category
	for _, name := range strings.Split(path, PathSeparator) {
		name = strings.TrimSpace(name)
		cat, ok := db.categories[name]
		if !ok {
			cat = db.AddCategory(name, parentID)
		}
		id := cat.ID
		parentID = &id
		leaf = cat
	}
	return leaf
}

// AddCategory creates an active category under parentID.
func (db *TestDB) AddCategory(name string, parentID *int64) model.Category {
	db.t.Helper()

	cat := &model.Category{
		TenantID: db.Tenant,
		Name:     name,
		ParentID: parentID,
		IsActive: true,
	}
	if err := db.Storage.CreateCategory(context.Background(), cat); err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	db.categories[name] = *cat
	return *cat
}

// AddRule persists rule for the database tenant and returns it with its id.
func (db *TestDB) AddRule(rule model.Rule) model.Rule {
	db.t.Helper()

	rule.TenantID = db.Tenant
	if rule.Priority == 0 {
		rule.Priority = model.DefaultRulePriority
	}
	if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
		db.t.Fatalf("failed to seed rule %q: %v", rule.Name, err)
	}
	return rule
}

// MustGetCategory returns the seeded category with the given name or fails the test.
func (db *TestDB) MustGetCategory(name string) model.Category {
	db.t.Helper()
	cat, ok := db.categories[name]
	if !ok {
		db.t.Fatalf("category %q not found in test data", name)
	}
	return cat
}
