package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// BatchOption configures a single CategorizeBatch call.
type BatchOption func(*batchOptions)

type batchOptions struct {
	progress func(done int)
}

// WithProgress registers a callback invoked once per categorized record.
// It may be called from several goroutines at once.
func WithProgress(fn func(done int)) BatchOption {
	return func(o *batchOptions) {
		o.progress = fn
	}
}

// CategorizeBatch categorizes records in order. Active rules and the tenant's
// categories are fetched once per batch and shared read-only by every worker.
func (s *Service) CategorizeBatch(ctx context.Context, tenantID string, records []model.Record, opts ...BatchOption) ([]model.Category, error) {
	var options batchOptions
	for _, opt := range opts {
		opt(&options)
	}

	if len(records) == 0 {
		return []model.Category{}, nil
	}

	startTime := time.Now()
	logger := slog.With("run_id", uuid.NewString(), "tenant", tenantID)

	active, err := s.ActiveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan := s.plan(tenantID, active)

	cats, err := s.store.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	byID := make(map[int64]model.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	defaultCategory := sync.OnceValues(func() (*model.Category, error) {
		return s.DefaultCategory(ctx, tenantID)
	})

	categorizeOne := func(record model.Record) (model.Category, error) {
		if record.Validate() == nil {
			if rule, ok := s.match(plan, record); ok {
				if cat, found := byID[rule.CategoryID]; found {
					return cat, nil
				}
				logger.Warn("matched rule points at a missing category",
					"rule", rule.Name,
					"category_id", rule.CategoryID)
			}
		}
		def, err := defaultCategory()
		if err != nil {
			return model.Category{}, err
		}
		return *def, nil
	}

	logger.Info("starting batch categorization",
		"records", len(records),
		"rules", len(plan))

	results := make([]model.Category, len(records))
	var done int
	var doneMu sync.Mutex
	step := func() {
		if options.progress == nil {
			return
		}
		doneMu.Lock()
		done++
		n := done
		doneMu.Unlock()
		options.progress(n)
	}

	if len(records) < s.config.ParallelThreshold || s.config.Workers <= 1 {
		for i, record := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cat, err := categorizeOne(record)
			if err != nil {
				return nil, err
			}
			results[i] = cat
			step()
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Workers)
		for i, record := range records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				cat, err := categorizeOne(record)
				if err != nil {
					return err
				}
				results[i] = cat
				step()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("batch categorization failed: %w", err)
		}
	}

	logger.Info("batch categorization complete",
		"records", len(records),
		"duration", time.Since(startTime))
	return results, nil
}
