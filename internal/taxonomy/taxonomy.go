// Package taxonomy maintains a tenant's hierarchical category tree.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/service"
)

// MaxDepth bounds every ancestor walk. Exceeding it is reported as a cycle.
const MaxDepth = 1000

// PathSeparator joins ancestor names in FullPath.
const PathSeparator = " > "

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Service validates and persists categories and derives structural views.
type Service struct {
	store service.CategoryStore
}

// NewService creates a taxonomy service over store.
func NewService(store service.CategoryStore) *Service {
	return &Service{store: store}
}

// ValidColor reports whether color is a 7-character hex color such as #FF5722.
func ValidColor(color string) bool {
	return colorPattern.MatchString(color)
}

// Save creates cat when it has no id and updates it otherwise. Every check
// runs before anything is written.
func (s *Service) Save(ctx context.Context, cat *model.Category) error {
	if cat == nil {
		return fmt.Errorf("category is required")
	}
	if err := s.validate(ctx, cat); err != nil {
		return err
	}

	var err error
	if cat.ID == 0 {
		err = s.store.CreateCategory(ctx, cat)
	} else {
		err = s.store.UpdateCategory(ctx, cat)
	}
	if errors.Is(err, common.ErrDuplicateEntry) {
		// Lost a race with a concurrent writer using the same name.
		return common.NewValidationError("name", common.ErrDuplicateName, cat.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}

	slog.Debug("saved category", "tenant", cat.TenantID, "id", cat.ID, "name", cat.Name)
	return nil
}

func (s *Service) validate(ctx context.Context, cat *model.Category) error {
	if strings.TrimSpace(cat.TenantID) == "" {
		return common.NewValidationError("company", common.ErrMissingTenant, "")
	}
	if strings.TrimSpace(cat.Name) == "" {
		return common.NewValidationError("name", common.ErrRequired, "")
	}

	if cat.Color == "" {
		cat.Color = model.DefaultCategoryColor
	}
	if !ValidColor(cat.Color) {
		return common.NewValidationError("color", common.ErrInvalidColor, cat.Color)
	}

	existing, err := s.store.GetCategoryByName(ctx, cat.TenantID, cat.Name)
	switch {
	case err == nil && existing.ID != cat.ID:
		return common.NewValidationError("name", common.ErrDuplicateName, cat.Name)
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to check category name: %w", err)
	}

	if cat.ParentID == nil {
		return nil
	}
	if cat.ID != 0 && *cat.ParentID == cat.ID {
		return common.NewValidationError("parent", common.ErrSelfParent, strconv.FormatInt(*cat.ParentID, 10))
	}
	return s.checkParent(ctx, cat)
}

// checkParent walks the proposed parent's ancestor chain and rejects it when
// the chain reaches cat or does not terminate within MaxDepth.
func (s *Service) checkParent(ctx context.Context, cat *model.Category) error {
	parentRef := strconv.FormatInt(*cat.ParentID, 10)

	current, err := s.store.GetCategory(ctx, cat.TenantID, *cat.ParentID)
	if errors.Is(err, common.ErrNotFound) {
		// Parents are looked up within the tenant, so a foreign id is indistinguishable from a missing one.
		return common.NewValidationError("parent", common.ErrCrossTenant, parentRef)
	}
	if err != nil {
		return fmt.Errorf("failed to load parent category: %w", err)
	}

	// New categories cannot be anyone's ancestor yet.
	if cat.ID == 0 {
		return nil
	}

	for depth := 0; ; depth++ {
		if depth >= MaxDepth || current.ID == cat.ID {
			return common.NewValidationError("parent", common.ErrCircularReference, parentRef)
		}
		if current.ParentID == nil {
			return nil
		}
		current, err = s.store.GetCategory(ctx, cat.TenantID, *current.ParentID)
		if err != nil {
			return fmt.Errorf("failed to walk ancestors: %w", err)
		}
	}
}

// Get returns a tenant's category.
func (s *Service) Get(ctx context.Context, tenantID string, id int64) (*model.Category, error) {
	return s.store.GetCategory(ctx, tenantID, id)
}

// Delete removes a category together with its descendants and their rules.
// A category that is, or has beneath it, a system category is refused.
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	cat, err := s.store.GetCategory(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if cat.IsSystem {
		return common.NewValidationError("is_system", common.ErrSystemCategory, cat.Name)
	}
	descendants, err := s.Descendants(ctx, tenantID, id)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if d.IsSystem {
			return common.NewValidationError("is_system", common.ErrSystemCategory, d.Name)
		}
	}
	if err := s.store.DeleteCategory(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete category %q: %w", cat.Name, err)
	}
	return nil
}
