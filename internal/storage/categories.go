package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

const categoryColumns = `id, tenant_id, parent_id, name, color, is_system, is_active, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (model.Category, error) {
	var cat model.Category
	var parentID sql.NullInt64
	err := row.Scan(
		&cat.ID, &cat.TenantID, &parentID, &cat.Name, &cat.Color,
		&cat.IsSystem, &cat.IsActive, &cat.CreatedAt, &cat.UpdatedAt,
	)
	if err != nil {
		return model.Category{}, err
	}
	cat.ParentID = idPointer(parentID)
	return cat, nil
}

func (s *SQLiteStorage) queryCategories(ctx context.Context, query string, args ...any) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// GetCategory returns a tenant's category by id.
func (s *SQLiteStorage) GetCategory(ctx context.Context, tenantID string, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE tenant_id = ? AND id = ?`
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get category %d", id))
	}
	return &cat, nil
}

// GetCategoryByName returns a tenant's category by its exact name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, tenantID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE tenant_id = ? AND name = ?`
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, tenantID, name))
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("get category %q", name))
	}
	return &cat, nil
}

// ListCategories returns every category of the tenant ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	categories, err := s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}

	slog.Debug("retrieved categories", "tenant", tenantID, "count", len(categories))
	return categories, nil
}

// ListChildren returns the direct children of parentID ordered by name.
func (s *SQLiteStorage) ListChildren(ctx context.Context, tenantID string, parentID int64, activeOnly bool) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE tenant_id = ? AND parent_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	return s.queryCategories(ctx, query, tenantID, parentID)
}

// CreateCategory inserts a new category and assigns its id.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, cat *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(cat); err != nil {
		return err
	}
	if cat.Color == "" {
		cat.Color = model.DefaultCategoryColor
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (tenant_id, parent_id, name, color, is_system, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cat.TenantID, nullableID(cat.ParentID), cat.Name, cat.Color,
		cat.IsSystem, cat.IsActive, now, now,
	)
	if err != nil {
		return translateError(err, fmt.Sprintf("create category %q", cat.Name))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}

	cat.ID = id
	cat.CreatedAt = now
	cat.UpdatedAt = now

	slog.Info("created category", "tenant", cat.TenantID, "name", cat.Name, "id", id)
	return nil
}

// UpdateCategory persists name, color, parent and flags of an existing category.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, cat *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(cat); err != nil {
		return err
	}
	if err := validateID(cat.ID, "id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET parent_id = ?, name = ?, color = ?, is_system = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		nullableID(cat.ParentID), cat.Name, cat.Color, cat.IsSystem, cat.IsActive, now,
		cat.ID, cat.TenantID,
	)
	if err != nil {
		return translateError(err, fmt.Sprintf("update category %d", cat.ID))
	}

	if err := expectOneRow(result, fmt.Sprintf("category %d", cat.ID)); err != nil {
		return err
	}
	cat.UpdatedAt = now
	return nil
}

// DeleteCategory removes a category. Children and rules referencing it are
// removed by the ON DELETE CASCADE foreign keys.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, tenantID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if err := expectOneRow(result, fmt.Sprintf("category %d", id)); err != nil {
		return err
	}

	slog.Info("deleted category", "tenant", tenantID, "id", id)
	return nil
}

// SetCategoriesActive toggles is_active for the given ids and returns how many rows changed.
func (s *SQLiteStorage) SetCategoriesActive(ctx context.Context, tenantID string, ids []int64, active bool) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+3)
	args = append(args, active, time.Now().UTC(), tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE categories SET is_active = ?, updated_at = ? WHERE tenant_id = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to toggle categories: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// expectOneRow turns a zero-row mutation into common.ErrNotFound.
func expectOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}
