package categorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/rules"
	"github.com/Veraticus/spice-categorizer/internal/service"
)

// RuleManager validates and persists rule definitions for tenant administrators.
type RuleManager struct {
	store  service.Storage
	engine *rules.Engine
}

// NewRuleManager creates a rule manager. engine may be nil; when set, deleted
// rules are dropped from its cache.
func NewRuleManager(store service.Storage, engine *rules.Engine) *RuleManager {
	return &RuleManager{store: store, engine: engine}
}

// Create validates rule and stores it. A zero priority becomes the default.
func (m *RuleManager) Create(ctx context.Context, rule *model.Rule) error {
	if rule != nil && rule.Priority == 0 {
		rule.Priority = model.DefaultRulePriority
	}
	if err := m.validate(ctx, rule); err != nil {
		return err
	}

	if err := m.store.CreateRule(ctx, rule); err != nil {
		return m.translate(rule, err)
	}
	return nil
}

// Update validates an edited rule and stores it, advancing its version.
func (m *RuleManager) Update(ctx context.Context, rule *model.Rule) error {
	if err := m.validate(ctx, rule); err != nil {
		return err
	}
	if rule.ID <= 0 {
		return common.NewValidationError("id", common.ErrRequired, "")
	}

	if err := m.store.UpdateRule(ctx, rule); err != nil {
		return m.translate(rule, err)
	}
	slog.Info("updated rule", "tenant", rule.TenantID, "rule", rule.Name, "version", rule.Version)
	return nil
}

// Delete removes a rule.
func (m *RuleManager) Delete(ctx context.Context, tenantID string, id int64) error {
	if err := m.store.DeleteRule(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	if m.engine != nil {
		m.engine.Forget(id)
	}
	return nil
}

// Get returns a rule by id.
func (m *RuleManager) Get(ctx context.Context, tenantID string, id int64) (*model.Rule, error) {
	return m.store.GetRule(ctx, tenantID, id)
}

// GetByName returns a rule by its tenant-unique name.
func (m *RuleManager) GetByName(ctx context.Context, tenantID, name string) (*model.Rule, error) {
	return m.store.GetRuleByName(ctx, tenantID, name)
}

// List returns every rule of the tenant in evaluation order, inactive ones included.
func (m *RuleManager) List(ctx context.Context, tenantID string) ([]model.Rule, error) {
	return m.store.ListRules(ctx, tenantID)
}

func (m *RuleManager) validate(ctx context.Context, rule *model.Rule) error {
	if err := rules.ValidateRule(rule); err != nil {
		return err
	}

	existing, err := m.store.GetRuleByName(ctx, rule.TenantID, rule.Name)
	switch {
	case err == nil && existing.ID != rule.ID:
		return common.NewValidationError("name", common.ErrDuplicateName, rule.Name)
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to check rule name: %w", err)
	}

	if _, err := m.store.GetCategory(ctx, rule.TenantID, rule.CategoryID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewValidationError("category", common.ErrCrossTenant, strconv.FormatInt(rule.CategoryID, 10))
		}
		return fmt.Errorf("failed to check rule category: %w", err)
	}
	return nil
}

// translate maps storage conflicts that slipped past validation onto field errors.
func (m *RuleManager) translate(rule *model.Rule, err error) error {
	switch {
	case errors.Is(err, common.ErrDuplicateEntry):
		return common.NewValidationError("name", common.ErrDuplicateName, rule.Name)
	case errors.Is(err, common.ErrCrossTenant):
		return common.NewValidationError("category", common.ErrCrossTenant, strconv.FormatInt(rule.CategoryID, 10))
	}
	return fmt.Errorf("failed to save rule %q: %w", rule.Name, err)
}
