package domain

import (
	"context"
	"fmt"

	"setflow/internal/core/apperror"
	"setflow/internal/core/entity"
	"setflow/internal/core/id"
	"setflow/internal/core/tx"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/events"
	"setflow/pkg/logger"
)

// Entity is what the generic service needs from a catalog row.
type Entity interface {
	entity.Validatable
	GetID() id.ID
}

// CatalogService implements create/read/update/delete for one catalog with
// hooks, an audit trail and outbox events. Each write runs in one
// transaction; the tenant's tx manager comes from ctx unless configured.
type CatalogService[T Entity] struct {
	repo   CatalogRepository[T]
	txm    tx.Manager
	audit  audit.Recorder
	events events.Publisher
	hooks  *HookRegistry[T]
	name   string
}

type CatalogServiceConfig[T Entity] struct {
	Repo       CatalogRepository[T]
	TxManager  tx.Manager
	Audit      audit.Recorder
	Events     events.Publisher
	EntityName string // "asset", used for errors, audit rows and event types
}

func NewCatalogService[T Entity](cfg CatalogServiceConfig[T]) *CatalogService[T] {
	s := &CatalogService[T]{
		repo:   cfg.Repo,
		txm:    cfg.TxManager,
		audit:  cfg.Audit,
		events: cfg.Events,
		hooks:  NewHookRegistry[T](),
		name:   cfg.EntityName,
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	return s
}

func (s *CatalogService[T]) Hooks() *HookRegistry[T]       { return s.hooks }
func (s *CatalogService[T]) Repo() CatalogRepository[T]    { return s.repo }
func (s *CatalogService[T]) EntityName() string            { return s.name }
func (s *CatalogService[T]) Events() events.Publisher      { return s.events }
func (s *CatalogService[T]) AuditRecorder() audit.Recorder { return s.audit }

// InTx runs fn in the service's transaction.
func (s *CatalogService[T]) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return InTx(ctx, s.txm, fn)
}

func (s *CatalogService[T]) validate(ctx context.Context, e T) error {
	err := e.Validate(ctx)
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *CatalogService[T]) notFound(err error, key any) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.name, key)
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return fmt.Errorf("get %s %v: %w", s.name, key, err)
}

func (s *CatalogService[T]) Create(ctx context.Context, e T) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	err := s.InTx(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, BeforeCreate, e); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
		return s.Trail(ctx, e.GetID(), audit.ActionCreate, nil, e, s.name+".created")
	})
	if err != nil {
		return err
	}
	s.after(ctx, AfterCreate, e)
	return nil
}

func (s *CatalogService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return e, s.notFound(err, entityID.String())
	}
	return e, nil
}

func (s *CatalogService[T]) GetByCode(ctx context.Context, code string) (T, error) {
	e, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return e, s.notFound(err, code)
	}
	return e, nil
}

// Update saves e. e.Version must be the version the client read.
func (s *CatalogService[T]) Update(ctx context.Context, e T) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	err := s.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetByID(ctx, e.GetID())
		if err != nil {
			return s.notFound(err, e.GetID().String())
		}
		if err := s.hooks.Run(ctx, BeforeUpdate, e); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, e); err != nil {
			if _, ok := apperror.AsAppError(err); ok {
				return err
			}
			return fmt.Errorf("update %s: %w", s.name, err)
		}
		return s.Trail(ctx, e.GetID(), audit.ActionUpdate, before, e, s.name+".updated")
	})
	if err != nil {
		return err
	}
	s.after(ctx, AfterUpdate, e)
	return nil
}

// Delete sets the deletion mark. Before-delete hooks may refuse it.
func (s *CatalogService[T]) Delete(ctx context.Context, entityID id.ID) error {
	var deleted T
	err := s.InTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetByID(ctx, entityID)
		if err != nil {
			return s.notFound(err, entityID.String())
		}
		if err := s.hooks.Run(ctx, BeforeDelete, e); err != nil {
			return err
		}
		if err := s.repo.SetDeletionMark(ctx, entityID, true); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
		deleted = e
		return s.Trail(ctx, entityID, audit.ActionDelete, e, nil, s.name+".deleted")
	})
	if err != nil {
		return err
	}
	s.after(ctx, AfterDelete, deleted)
	return nil
}

// Restore clears the deletion mark.
func (s *CatalogService[T]) Restore(ctx context.Context, entityID id.ID) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetDeletionMark(ctx, entityID, false); err != nil {
			return s.notFound(err, entityID.String())
		}
		return s.Trail(ctx, entityID, audit.ActionUpdate,
			map[string]any{"deletionMark": true}, map[string]any{"deletionMark": false}, s.name+".restored")
	})
}

func (s *CatalogService[T]) List(ctx context.Context, f ListFilter) (ListResult[T], error) {
	f.Clamp()
	for _, it := range f.Filters {
		if err := it.Validate(); err != nil {
			return ListResult[T]{}, apperror.NewValidation(err.Error()).WithDetail("field", it.Field)
		}
	}
	return s.repo.List(ctx, f)
}

func (s *CatalogService[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return s.repo.Exists(ctx, entityID)
}

func (s *CatalogService[T]) GetTree(ctx context.Context, rootID *id.ID) ([]T, error) {
	return s.repo.GetTree(ctx, rootID)
}

func (s *CatalogService[T]) GetPath(ctx context.Context, entityID id.ID) ([]T, error) {
	return s.repo.GetPath(ctx, entityID)
}

func (s *CatalogService[T]) History(ctx context.Context, entityID id.ID, limit int) ([]audit.Entry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.History(ctx, s.name, entityID, limit)
}

// Trail writes the audit entry and the outbox event for one change.
func (s *CatalogService[T]) Trail(ctx context.Context, entityID id.ID, action audit.Action, before, after any, eventType string) error {
	return s.trail().Write(ctx, entityID, action, before, after, eventType)
}

func (s *CatalogService[T]) trail() Trail {
	return Trail{Audit: s.audit, Events: s.events, Entity: s.name}
}

func (s *CatalogService[T]) after(ctx context.Context, event HookEvent, e T) {
	if err := s.hooks.Run(ctx, event, e); err != nil {
		logger.Warn(ctx, "after hook failed", "entity", s.name, "event", event, "error", err)
	}
}
