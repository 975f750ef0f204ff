// Package categorize assigns categories to transaction records by applying a
// tenant's prioritized rule set.
package categorize

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/rules"
	"github.com/Veraticus/spice-categorizer/internal/service"
)

// DefaultCategoryName is the system category assigned when no rule matches.
const DefaultCategoryName = "Sem Categoria"

// Config holds configuration options for the categorization service.
type Config struct {
	DefaultCategoryName string
	Workers             int           // Goroutines used by CategorizeBatch above ParallelThreshold
	ParallelThreshold   int           // Batches smaller than this run sequentially
	RetryAttempts       uint          // Default category get-or-create attempts
	RetryDelay          time.Duration // Delay between get-or-create attempts
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCategoryName: DefaultCategoryName,
		Workers:             4,
		ParallelThreshold:   500,
		RetryAttempts:       3,
		RetryDelay:          10 * time.Millisecond,
	}
}

// Service orchestrates rule retrieval, evaluation and the default fallback.
type Service struct {
	store  service.Storage
	engine *rules.Engine
	config Config
}

// New creates a categorization service with the default configuration.
func New(store service.Storage, engine *rules.Engine) *Service {
	return NewWithConfig(store, engine, DefaultConfig())
}

// NewWithConfig creates a categorization service with custom configuration.
func NewWithConfig(store service.Storage, engine *rules.Engine, config Config) *Service {
	defaults := DefaultConfig()
	if config.DefaultCategoryName == "" {
		config.DefaultCategoryName = defaults.DefaultCategoryName
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if engine == nil {
		engine = rules.NewEngine()
	}
	return &Service{
		store:  store,
		engine: engine,
		config: config,
	}
}

// Engine returns the rule engine shared by every categorization call.
func (s *Service) Engine() *rules.Engine {
	return s.engine
}

// ActiveRules returns the tenant's active rules ordered by priority
// descending, ties broken by name ascending.
func (s *Service) ActiveRules(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if tenantID == "" {
		return nil, common.ErrMissingTenant
	}

	fetched, err := s.store.GetActiveRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rules: %w", err)
	}

	active := slices.DeleteFunc(fetched, func(r model.Rule) bool { return !r.IsActive })
	slices.SortStableFunc(active, compareRules)
	return active, nil
}

func compareRules(a, b model.Rule) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// compiledRule pairs a rule with its compiled condition.
type compiledRule struct {
	condition rules.Condition
	rule      model.Rule
}

// plan compiles the rules once for a categorization call. Rules that fail to
// compile indicate corrupted data; they are logged and skipped.
func (s *Service) plan(tenantID string, active []model.Rule) []compiledRule {
	plan := make([]compiledRule, 0, len(active))
	for _, r := range active {
		cond, err := s.engine.Compile(r)
		if err != nil {
			slog.Error("skipping rule that cannot be compiled",
				"tenant", tenantID,
				"rule_id", r.ID,
				"rule", r.Name,
				"error", err)
			continue
		}
		plan = append(plan, compiledRule{rule: r, condition: cond})
	}
	return plan
}

// match returns the first rule in plan whose condition holds for record.
func (s *Service) match(plan []compiledRule, record model.Record) (model.Rule, bool) {
	for _, cr := range plan {
		if s.engine.Evaluate(cr.condition, record) {
			return cr.rule, true
		}
	}
	return model.Rule{}, false
}

// Categorize returns the category of the first active rule matching record,
// or the tenant's default category when none does. Records missing a
// required field go straight to the default category.
func (s *Service) Categorize(ctx context.Context, tenantID string, record model.Record) (*model.Category, error) {
	if err := record.Validate(); err != nil {
		slog.Debug("record not categorizable", "tenant", tenantID, "error", err)
		return s.DefaultCategory(ctx, tenantID)
	}

	active, err := s.ActiveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rule, ok := s.match(s.plan(tenantID, active), record)
	if !ok {
		return s.DefaultCategory(ctx, tenantID)
	}

	cat, err := s.store.GetCategory(ctx, tenantID, rule.CategoryID)
	if errors.Is(err, common.ErrNotFound) {
		slog.Warn("matched rule points at a missing category",
			"tenant", tenantID,
			"rule", rule.Name,
			"category_id", rule.CategoryID)
		return s.DefaultCategory(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category for rule %q: %w", rule.Name, err)
	}

	slog.Debug("record categorized", "tenant", tenantID, "rule", rule.Name, "category", cat.Name)
	return cat, nil
}
