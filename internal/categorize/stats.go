package categorize

import (
	"context"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// Stats summarizes resolved categories against the tenant's default category.
// An empty result set yields zero counts and a zero rate without touching storage.
func (s *Service) Stats(ctx context.Context, tenantID string, results []model.Category) (model.Stats, error) {
	if len(results) == 0 {
		return model.Stats{}, nil
	}

	def, err := s.DefaultCategory(ctx, tenantID)
	if err != nil {
		return model.Stats{}, err
	}
	return ComputeStats(results, def.ID), nil
}

// ComputeStats counts results whose id differs from defaultID as categorized.
func ComputeStats(results []model.Category, defaultID int64) model.Stats {
	stats := model.Stats{Total: len(results)}
	if stats.Total == 0 {
		return stats
	}

	for _, c := range results {
		if c.ID != defaultID {
			stats.Categorized++
		}
	}
	stats.Uncategorized = stats.Total - stats.Categorized
	stats.Rate = float64(stats.Categorized) / float64(stats.Total)
	return stats
}
