// Package domain holds the generic catalog service and the contracts its
// repositories implement.
package domain

import (
	"context"

	"setflow/internal/core/entity"
	"setflow/internal/core/id"
	"setflow/internal/domain/filter"
)

// ListFilter is shared by every list endpoint.
type ListFilter struct {
	Search         string
	IDs            []id.ID
	IncludeDeleted bool
	ParentID       *string
	IsFolder       *bool
	// DepartmentIDs restricts rows to these departments; nil means no restriction.
	DepartmentIDs []string
	Filters       []filter.Item
	OrderBy       string // "name", "-created_at"
	Limit         int
	Offset        int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func DefaultListFilter() ListFilter {
	return ListFilter{Limit: DefaultLimit, OrderBy: "name"}
}

// Clamp keeps Limit and Offset in range.
func (f *ListFilter) Clamp() {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// CatalogRepository is implemented by catalog_repo.BaseCatalogRepo and its
// specializations.
type CatalogRepository[T entity.Validatable] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	GetByCode(ctx context.Context, code string) (T, error)
	// Update fails with a concurrent-modification error when the stored
	// version differs from the entity's.
	Update(ctx context.Context, e T) error
	SetDeletionMark(ctx context.Context, id id.ID, marked bool) error
	List(ctx context.Context, f ListFilter) (ListResult[T], error)
	Exists(ctx context.Context, id id.ID) (bool, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	GetTree(ctx context.Context, rootID *id.ID) ([]T, error)
	GetPath(ctx context.Context, id id.ID) ([]T, error)
}

// RecordRepository is implemented by record_repo.BaseRecordRepo and its
// specializations. Records are numbered rather than coded and have no tree.
type RecordRepository[T entity.Validatable] interface {
	Create(ctx context.Context, e T) error
	GetByID(ctx context.Context, id id.ID) (T, error)
	GetByNumber(ctx context.Context, number string) (T, error)
	GetForUpdate(ctx context.Context, id id.ID) (T, error)
	Update(ctx context.Context, e T) error
	SetDeletionMark(ctx context.Context, id id.ID, marked bool) error
	List(ctx context.Context, f ListFilter) (ListResult[T], error)
}

type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	AfterUpdate  HookEvent = "after_update"
	BeforeDelete HookEvent = "before_delete"
	AfterDelete  HookEvent = "after_delete"
)

// Hook runs at a lifecycle point. Before-hooks run inside the transaction
// and abort it by returning an error.
type Hook[T any] func(ctx context.Context, e T) error

type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{hooks: make(map[HookEvent][]Hook[T])}
}

func (r *HookRegistry[T]) On(event HookEvent, h Hook[T]) {
	r.hooks[event] = append(r.hooks[event], h)
}

// Run stops at the first failing hook.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, e T) error {
	for _, h := range r.hooks[event] {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
