package taxonomy

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

// index is a flat id-addressed snapshot of a tenant's categories.
type index struct {
	byID     map[int64]model.Category
	children map[int64][]model.Category
	roots    []model.Category
}

// load snapshots the tenant's categories. The store returns them ordered by
// name, so every children slice is name ordered too.
func (s *Service) load(ctx context.Context, tenantID string) (*index, error) {
	cats, err := s.store.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	idx := &index{
		byID:     make(map[int64]model.Category, len(cats)),
		children: make(map[int64][]model.Category),
	}
	for _, c := range cats {
		idx.byID[c.ID] = c
		if c.ParentID == nil {
			idx.roots = append(idx.roots, c)
		} else {
			idx.children[*c.ParentID] = append(idx.children[*c.ParentID], c)
		}
	}
	return idx, nil
}

func (idx *index) get(id int64) (model.Category, error) {
	c, ok := idx.byID[id]
	if !ok {
		return model.Category{}, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	return c, nil
}

// ancestors walks parent links from c, nearest first.
func (idx *index) ancestors(c model.Category) ([]model.Category, error) {
	var out []model.Category
	for depth := 0; c.ParentID != nil; depth++ {
		if depth >= MaxDepth {
			return nil, common.NewValidationError("parent", common.ErrCircularReference, strconv.FormatInt(c.ID, 10))
		}
		parent, err := idx.get(*c.ParentID)
		if err != nil {
			return nil, err
		}
		out = append(out, parent)
		c = parent
	}
	return out, nil
}

// Children returns the active direct children of id ordered by name.
func (s *Service) Children(ctx context.Context, tenantID string, id int64) ([]model.Category, error) {
	return s.store.ListChildren(ctx, tenantID, id, true)
}

// Descendants returns every category below id, active or not, in
// depth-first order with siblings sorted by name.
func (s *Service) Descendants(ctx context.Context, tenantID string, id int64) ([]model.Category, error) {
	idx, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := idx.get(id); err != nil {
		return nil, err
	}

	var out []model.Category
	seen := map[int64]bool{id: true}
	var walk func(parent int64)
	walk = func(parent int64) {
		for _, child := range idx.children[parent] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(id)
	return out, nil
}

// Ancestors returns the chain of parents of id, nearest first.
func (s *Service) Ancestors(ctx context.Context, tenantID string, id int64) ([]model.Category, error) {
	idx, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c, err := idx.get(id)
	if err != nil {
		return nil, err
	}
	return idx.ancestors(c)
}

// FullPath returns the names from the root down to id joined by " > ".
func (s *Service) FullPath(ctx context.Context, tenantID string, id int64) (string, error) {
	idx, err := s.load(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return idx.fullPath(id)
}

func (idx *index) fullPath(id int64) (string, error) {
	c, err := idx.get(id)
	if err != nil {
		return "", err
	}
	ancestors, err := idx.ancestors(c)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(ancestors)+1)
	names = append(names, c.Name)
	for _, a := range ancestors {
		names = append(names, a.Name)
	}
	slices.Reverse(names)
	return strings.Join(names, PathSeparator), nil
}

// FullPaths returns the display path of every category of the tenant keyed by id.
func (s *Service) FullPaths(ctx context.Context, tenantID string) (map[int64]string, error) {
	idx, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	paths := make(map[int64]string, len(idx.byID))
	for id := range idx.byID {
		p, err := idx.fullPath(id)
		if err != nil {
			return nil, err
		}
		paths[id] = p
	}
	return paths, nil
}

// Tree returns the active root categories with their active children nested,
// each level ordered by name. Inactive categories hide their whole subtree.
func (s *Service) Tree(ctx context.Context, tenantID string) ([]model.CategoryNode, error) {
	idx, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var build func(cats []model.Category, depth int) []model.CategoryNode
	build = func(cats []model.Category, depth int) []model.CategoryNode {
		if depth >= MaxDepth {
			return nil
		}
		nodes := make([]model.CategoryNode, 0, len(cats))
		for _, c := range cats {
			if !c.IsActive {
				continue
			}
			nodes = append(nodes, model.CategoryNode{
				Category: c,
				Children: build(idx.children[c.ID], depth+1),
			})
		}
		return nodes
	}
	return build(idx.roots, 0), nil
}
