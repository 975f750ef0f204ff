package categorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

// DefaultCategory returns the tenant's default system category, creating it
// on first use. Concurrent callers converge on a single row: a creator that
// loses the unique-name race re-reads the winner's row.
func (s *Service) DefaultCategory(ctx context.Context, tenantID string) (*model.Category, error) {
	if tenantID == "" {
		return nil, common.ErrMissingTenant
	}

	var cat *model.Category
	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := s.getOrCreateDefault(ctx, tenantID)
			if err != nil {
				return err
			}
			cat = found
			return nil
		},
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, common.ErrDuplicateEntry)
		}),
		retry.Attempts(s.config.RetryAttempts),
		retry.Delay(s.config.RetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get default category: %w", err)
	}
	return cat, nil
}

func (s *Service) getOrCreateDefault(ctx context.Context, tenantID string) (*model.Category, error) {
	name := s.config.DefaultCategoryName

	existing, err := s.store.GetCategoryByName(ctx, tenantID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	cat := &model.Category{
		TenantID: tenantID,
		Name:     name,
		Color:    model.DefaultCategoryColor,
		IsSystem: true,
		IsActive: true,
	}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			slog.Debug("default category created concurrently, re-reading", "tenant", tenantID)
		}
		return nil, err
	}
	return cat, nil
}
