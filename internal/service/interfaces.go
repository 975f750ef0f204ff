// Package service defines the persistence contracts used by the categorization engine.
package service

import (
	"context"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// CategoryStore persists category nodes. Lookups that find nothing return
// an error wrapping common.ErrNotFound; unique-name conflicts wrap
// common.ErrDuplicateEntry.
type CategoryStore interface {
	GetCategory(ctx context.Context, tenantID string, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, tenantID, name string) (*model.Category, error)
	ListCategories(ctx context.Context, tenantID string) ([]model.Category, error)
	ListChildren(ctx context.Context, tenantID string, parentID int64, activeOnly bool) ([]model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, tenantID string, id int64) error
	SetCategoriesActive(ctx context.Context, tenantID string, ids []int64, active bool) (int, error)
}

// RuleStore persists categorization rules.
type RuleStore interface {
	GetRule(ctx context.Context, tenantID string, id int64) (*model.Rule, error)
	GetRuleByName(ctx context.Context, tenantID, name string) (*model.Rule, error)
	// ListRules returns every rule of the tenant ordered by priority desc, name asc.
	ListRules(ctx context.Context, tenantID string) ([]model.Rule, error)
	// GetActiveRules returns the active rules ordered by priority desc, name asc.
	GetActiveRules(ctx context.Context, tenantID string) ([]model.Rule, error)
	CountActiveRulesByCategory(ctx context.Context, tenantID string) (map[int64]int, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
	// UpdateRule persists the rule and advances its version marker.
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, tenantID string, id int64) error
}

// Storage is the full persistence collaborator.
type Storage interface {
	CategoryStore
	RuleStore

	// DeleteTenant removes every category and rule owned by the tenant.
	DeleteTenant(ctx context.Context, tenantID string) error
	Migrate(ctx context.Context) error
	Close() error
}
