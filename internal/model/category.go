// Package model defines the core data structures for the categorization engine.
package model

import "time"

// DefaultCategoryColor is assigned to categories created without an explicit color.
const DefaultCategoryColor = "#9E9E9E"

// Category is a node in a tenant's hierarchical taxonomy.
// Parent links are stored by id only; traversal is done through lookups.
type Category struct {
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
	ParentID  *int64    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	TenantID  string    `json:"tenant_id" yaml:"tenant_id"`
	Name      string    `json:"name" yaml:"name"`
	Color     string    `json:"color" yaml:"color"`
	ID        int64     `json:"id" yaml:"id"`
	IsSystem  bool      `json:"is_system" yaml:"is_system"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// HasParent reports whether the category's parent is id.
func (c *Category) HasParent(id int64) bool {
	return c.ParentID != nil && *c.ParentID == id
}

// CategoryNode is a category with its active children, used for tree views.
type CategoryNode struct {
	Category Category       `json:"category"`
	Children []CategoryNode `json:"children"`
}
