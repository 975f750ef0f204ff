package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

// DefaultCategory describes a system category seeded by CreateDefaults.
type DefaultCategory struct {
	Name  string
	Color string
}

// Defaults are the system categories every tenant starts with.
var Defaults = []DefaultCategory{
	{Name: "Receitas", Color: "#4CAF50"},
	{Name: "Despesas", Color: "#F44336"},
	{Name: "Transferências", Color: "#2196F3"},
}

// CreateDefaults creates the missing default system categories for the
// tenant and returns the ones it created. Existing names are left untouched.
func (s *Service) CreateDefaults(ctx context.Context, tenantID string) ([]model.Category, error) {
	var created []model.Category
	for _, d := range Defaults {
		_, err := s.store.GetCategoryByName(ctx, tenantID, d.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrNotFound) {
			return created, fmt.Errorf("failed to look up %q: %w", d.Name, err)
		}

		cat := &model.Category{
			TenantID: tenantID,
			Name:     d.Name,
			Color:    d.Color,
			IsSystem: true,
			IsActive: true,
		}
		if err := s.store.CreateCategory(ctx, cat); err != nil {
			if errors.Is(err, common.ErrDuplicateEntry) {
				continue
			}
			return created, fmt.Errorf("failed to create %q: %w", d.Name, err)
		}
		created = append(created, *cat)
	}

	slog.Info("default categories ensured", "tenant", tenantID, "created", len(created))
	return created, nil
}

// SystemCategories returns the tenant's active system categories ordered by name.
func (s *Service) SystemCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	cats, err := s.store.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var out []model.Category
	for _, c := range cats {
		if c.IsSystem && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// BulkToggle sets is_active on the given categories and returns how many
// of the tenant's categories were updated.
func (s *Service) BulkToggle(ctx context.Context, tenantID string, ids []int64, active bool) (int, error) {
	if len(ids) == 0 {
		return 0, common.NewValidationError("category_ids", common.ErrRequired, "")
	}
	n, err := s.store.SetCategoriesActive(ctx, tenantID, ids, active)
	if err != nil {
		return 0, fmt.Errorf("failed to toggle categories: %w", err)
	}
	return n, nil
}
