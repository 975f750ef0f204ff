package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

const ruleColumns = `id, tenant_id, category_id, name, condition_type, field_name, field_value,
	priority, is_active, version, created_at, updated_at`

// Stored condition types and field names are scanned as-is. Unknown values
// surface when the rule is compiled, not here.
func scanRule(row rowScanner) (model.Rule, error) {
	var rule model.Rule
	var conditionType, fieldName string
	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.CategoryID, &rule.Name, &conditionType, &fieldName, &rule.FieldValue,
		&rule.Priority, &rule.IsActive, &rule.Version, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return model.Rule{}, err
	}
	rule.ConditionType = model.ConditionType(conditionType)
	rule.FieldName = model.FieldName(fieldName)
	return rule, nil
}

func (s *SQLiteStorage) queryRules(ctx context.Context, query string, args ...any) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// GetRule retrieves a rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, tenantID string, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM categorization_rules WHERE tenant_id = ? AND id = ?`
	rule, err := scanRule(s.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get rule %d", id))
	}
	return &rule, nil
}

// GetRuleByName retrieves a rule by its tenant-unique name.
func (s *SQLiteStorage) GetRuleByName(ctx context.Context, tenantID, name string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM categorization_rules WHERE tenant_id = ? AND name = ?`
	rule, err := scanRule(s.db.QueryRowContext(ctx, query, tenantID, name))
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get rule %q", name))
	}
	return &rule, nil
}

// ListRules returns every rule of the tenant, active or not.
func (s *SQLiteStorage) ListRules(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM categorization_rules
		WHERE tenant_id = ?
		ORDER BY priority DESC, name ASC`, tenantID)
}

// GetActiveRules retrieves the tenant's active rules in evaluation order.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, tenantID string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+` FROM categorization_rules
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY priority DESC, name ASC`, tenantID)
	if err != nil {
		return nil, err
	}

	slog.Debug("retrieved active rules", "tenant", tenantID, "count", len(rules))
	return rules, nil
}

// CountActiveRulesByCategory returns the number of active rules per category id.
func (s *SQLiteStorage) CountActiveRulesByCategory(ctx context.Context, tenantID string) (map[int64]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, COUNT(*)
		FROM categorization_rules
		WHERE tenant_id = ? AND is_active = 1
		GROUP BY category_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int)
	for rows.Next() {
		var categoryID int64
		var count int
		if err := rows.Scan(&categoryID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rule count: %w", err)
		}
		counts[categoryID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule counts: %w", err)
	}
	return counts, nil
}

// CreateRule inserts a rule at version 1.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.verifyCategory(ctx, rule.TenantID, rule.CategoryID); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categorization_rules (
			tenant_id, category_id, name, condition_type, field_name, field_value,
			priority, is_active, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rule.TenantID, rule.CategoryID, rule.Name, string(rule.ConditionType), string(rule.FieldName),
		rule.FieldValue, rule.Priority, rule.IsActive, now, now,
	)
	if err != nil {
		return translateError(err, fmt.Sprintf("create rule %q", rule.Name))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.Version = 1
	rule.CreatedAt = now
	rule.UpdatedAt = now

	slog.Info("created rule", "tenant", rule.TenantID, "name", rule.Name, "id", id)
	return nil
}

// UpdateRule persists an edited rule and advances its version.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := validateID(rule.ID, "id"); err != nil {
		return err
	}
	if err := s.verifyCategory(ctx, rule.TenantID, rule.CategoryID); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_rules
		SET category_id = ?, name = ?, condition_type = ?, field_name = ?, field_value = ?,
			priority = ?, is_active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		rule.CategoryID, rule.Name, string(rule.ConditionType), string(rule.FieldName), rule.FieldValue,
		rule.Priority, rule.IsActive, now, rule.ID, rule.TenantID,
	)
	if err != nil {
		return translateError(err, fmt.Sprintf("update rule %d", rule.ID))
	}
	if err := expectOneRow(result, fmt.Sprintf("rule %d", rule.ID)); err != nil {
		return err
	}

	var version int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT version FROM categorization_rules WHERE id = ?`, rule.ID).Scan(&version); err != nil {
		return fmt.Errorf("failed to read rule version: %w", err)
	}

	rule.Version = version
	rule.UpdatedAt = now
	return nil
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, tenantID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM categorization_rules WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if err := expectOneRow(result, fmt.Sprintf("rule %d", id)); err != nil {
		return err
	}

	slog.Info("deleted rule", "tenant", tenantID, "id", id)
	return nil
}

// verifyCategory checks that the rule's target belongs to the same tenant.
func (s *SQLiteStorage) verifyCategory(ctx context.Context, tenantID string, categoryID int64) error {
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM categories WHERE id = ?`, categoryID).Scan(&owner)
	if err != nil {
		return translateError(err, fmt.Sprintf("verify category %d", categoryID))
	}
	if owner != tenantID {
		return fmt.Errorf("category %d: %w", categoryID, common.ErrCrossTenant)
	}
	return nil
}
