package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// AddCategoryOutcome classifies the result of adding a category.
type AddCategoryOutcome int

const (
	CategoryAdded AddCategoryOutcome = iota
	CategoryDuplicate
	CategoryFailed
)

func (o AddCategoryOutcome) String() string {
	switch o {
	case CategoryAdded:
		return "added"
	case CategoryDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// AddCategoryResult carries the normalized name and, for CategoryFailed,
// the underlying error.
type AddCategoryResult struct {
	Name    string
	Outcome AddCategoryOutcome
	Err     error
}

// Added reports whether a new category was created.
func (r AddCategoryResult) Added() bool {
	return r.Outcome == CategoryAdded
}

// CategoryRegistry owns the set of category names. Categories are never
// renamed or removed, so resolved ids are cached.
type CategoryRegistry struct {
	db  *storage.DB
	ids cache.Cache[int64]
}

func NewCategoryRegistry(db *storage.DB) *CategoryRegistry {
	return &CategoryRegistry{db: db, ids: cache.NewLRU[int64](256, 30*time.Minute)}
}

// AddCategory stores name upper-cased. Adding an existing name is reported
// as CategoryDuplicate and leaves the store unchanged.
func (r *CategoryRegistry) AddCategory(ctx context.Context, name string) AddCategoryResult {
	normalized := core.NormalizeCategoryName(name)
	if normalized == "" {
		return AddCategoryResult{Outcome: CategoryFailed, Err: core.ErrEmptyCategory}
	}

	added, err := r.db.Queries().InsertCategory(ctx, normalized)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to add category", "category", normalized, "error", err)
		return AddCategoryResult{
			Name:    normalized,
			Outcome: CategoryFailed,
			Err:     fmt.Errorf("insert category: %w", err),
		}
	}
	if !added {
		slog.InfoContext(ctx, "Category already exists", "category", normalized)
		return AddCategoryResult{Name: normalized, Outcome: CategoryDuplicate}
	}

	slog.InfoContext(ctx, "Category added", "category", normalized)
	return AddCategoryResult{Name: normalized, Outcome: CategoryAdded}
}

// ListCategories returns every category name in ascending order.
func (r *CategoryRegistry) ListCategories(ctx context.Context) ([]string, error) {
	names, err := r.db.Queries().ListCategoryNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

// Resolve returns the id of the category matching name after normalization.
// An unknown name yields core.ErrCategoryNotFound.
func (r *CategoryRegistry) Resolve(ctx context.Context, name string) (int64, error) {
	return r.resolveWith(ctx, r.db.Queries(), name)
}

func (r *CategoryRegistry) resolveWith(ctx context.Context, q *storage.Queries, name string) (int64, error) {
	normalized := core.NormalizeCategoryName(name)
	if normalized == "" {
		return 0, core.ErrEmptyCategory
	}
	if id, ok := r.ids.Get(normalized); ok {
		return id, nil
	}
	id, err := q.GetCategoryIDByName(ctx, normalized)
	if err != nil {
		return 0, fmt.Errorf("resolve category: %w", err)
	}
	r.ids.Set(normalized, id)
	return id, nil
}
