// Package storage provides the SQLite persistence layer for categories and rules.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidID       = errors.New("id must be positive")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidRule     = errors.New("invalid rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures an identifier refers to a persisted row.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

// validateCategory checks the row-level shape of a category. Business rules
// (uniqueness, acyclicity, color format) are enforced by the taxonomy package.
func validateCategory(cat *model.Category) error {
	if cat == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(cat.TenantID) == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidCategory)
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if cat.ParentID != nil && cat.ID != 0 && *cat.ParentID == cat.ID {
		return fmt.Errorf("%w: category cannot be its own parent", ErrInvalidCategory)
	}
	return nil
}

// validateRule checks the row-level shape of a rule.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.TenantID) == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if rule.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidRule)
	}
	return nil
}
