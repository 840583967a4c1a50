package assignment

import (
	"context"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/core/security"
	"setflow/internal/core/tx"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/events"
	"setflow/internal/domain/records"
)

const entityName = "assignment"

// Service hands assets out and takes them back.
type Service struct {
	repo      Repository
	assets    records.Assets
	numerator numerator.Generator
	txm       tx.Manager
	trail     domain.Trail
	now       func() time.Time
}

func NewService(
	repo Repository,
	assets records.Assets,
	gen numerator.Generator,
	rec audit.Recorder,
	pub events.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		assets:    assets,
		numerator: gen,
		trail:     domain.Trail{Audit: rec, Events: pub, Entity: entityName},
		now:       time.Now,
	}
}

// ReturnInput describes a hand-back. A nil ReturnedAt means now.
type ReturnInput struct {
	ReturnedAt *time.Time
	Notes      string
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return domain.InTx(ctx, s.txm, fn)
}

func notFound(err error, key string) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(entityName, key)
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return fmt.Errorf("get assignment %s: %w", key, err)
}

// Create assigns an available asset. The asset becomes assigned to the
// user and moves to the assignment's department when one is given.
func (s *Service) Create(ctx context.Context, a *Assignment) error {
	a.Normalize()
	a.Status = StatusActive
	a.ReturnedAt = nil
	if err := a.Validate(ctx); err != nil {
		return err
	}
	if a.DepartmentID != nil && !security.GetScope(ctx).CanAccessDepartment(*a.DepartmentID) {
		return apperror.NewForbidden("department is outside your scope").
			WithDetail("departmentId", *a.DepartmentID)
	}
	audit.StampCreated(ctx, &a.Authored)

	return s.inTx(ctx, func(ctx context.Context) error {
		assetID, err := records.AssetID(a.AssetID)
		if err != nil {
			return err
		}
		target, err := s.assets.GetByID(ctx, assetID)
		if err != nil {
			return err
		}
		if target.Status != asset.StatusAvailable || target.DeletionMark {
			return apperror.NewAssetUnavailable(a.AssetID, string(target.Status))
		}
		switch open, err := s.repo.ActiveFor(ctx, a.AssetID); {
		case err == nil:
			return apperror.NewAssetUnavailable(a.AssetID, string(asset.StatusAssigned)).
				WithDetail("assignment", open.Number)
		case !apperror.IsNotFound(err):
			return err
		}

		if a.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.YearlyConfig("ASG"), nil, a.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			a.Number = number
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}

		dept := target.DepartmentID
		if a.DepartmentID != nil {
			dept = a.DepartmentID
		}
		if _, err := s.assets.ChangeStatus(ctx, assetID, asset.StatusAssigned, a.UserID, dept); err != nil {
			return err
		}
		return s.trail.Write(ctx, a.ID, audit.ActionCreate, nil, a, events.AssetAssigned)
	})
}

// Return closes an active assignment. An asset under maintenance stays
// there without a holder; otherwise it becomes available.
func (s *Service) Return(ctx context.Context, aID id.ID, in ReturnInput) (*Assignment, error) {
	var out *Assignment
	err := s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, aID)
		if err != nil {
			return notFound(err, aID.String())
		}
		if a.DeletionMark {
			return apperror.NewNotFound(entityName, aID.String())
		}
		if err := s.visible(ctx, a); err != nil {
			return err
		}
		if a.Status != StatusActive {
			return apperror.NewInvalidTransition(entityName, string(a.Status), string(StatusReturned))
		}

		returnedAt := s.now().UTC()
		if in.ReturnedAt != nil {
			returnedAt = *in.ReturnedAt
		}
		if returnedAt.Before(a.Date) {
			return apperror.NewValidation("return is before the assignment date").WithDetail("field", "returnedAt")
		}

		assetID, err := records.AssetID(a.AssetID)
		if err != nil {
			return err
		}
		held, err := s.assets.GetByID(ctx, assetID)
		if err != nil {
			return err
		}
		next := asset.StatusAvailable
		if held.Status == asset.StatusMaintenance {
			next = asset.StatusMaintenance
		}
		if _, err := s.assets.ChangeStatus(ctx, assetID, next, nil, held.DepartmentID); err != nil {
			return err
		}

		a.Status = StatusReturned
		a.ReturnedAt = &returnedAt
		if in.Notes != "" {
			a.Notes = in.Notes
		}
		audit.StampUpdated(ctx, &a.Authored)
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return s.trail.Write(ctx, aID, audit.ActionStatus,
			map[string]any{"status": StatusActive},
			map[string]any{"status": a.Status, "returnedAt": a.ReturnedAt},
			events.AssetReturned)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HasActive reports whether the asset is currently handed out.
func (s *Service) HasActive(ctx context.Context, assetID string) (bool, error) {
	_, err := s.repo.ActiveFor(ctx, assetID)
	switch {
	case err == nil:
		return true, nil
	case apperror.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ActiveFor returns the asset's open assignment.
func (s *Service) ActiveFor(ctx context.Context, assetID string) (*Assignment, error) {
	a, err := s.repo.ActiveFor(ctx, assetID)
	if err != nil {
		return nil, notFound(err, assetID)
	}
	if err := s.visible(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetByID(ctx context.Context, aID id.ID) (*Assignment, error) {
	a, err := s.repo.GetByID(ctx, aID)
	if err != nil {
		return nil, notFound(err, aID.String())
	}
	if err := s.visible(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Assignment, error) {
	a, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, number)
	}
	if err := s.visible(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// visible hides assignments of assets outside the caller's departments.
func (s *Service) visible(ctx context.Context, a *Assignment) error {
	assetID, err := records.AssetID(a.AssetID)
	if err != nil {
		return err
	}
	if _, err := s.assets.GetByID(ctx, assetID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound(entityName, a.ID.String())
		}
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Assignment], error) {
	f.Clamp()
	for _, it := range f.Filters {
		if err := it.Validate(); err != nil {
			return domain.ListResult[*Assignment]{}, apperror.NewValidation(err.Error()).WithDetail("field", it.Field)
		}
	}
	if scope := security.GetScope(ctx); !scope.SeesAllAssets() {
		f.DepartmentIDs = scope.FilterDepartments(f.DepartmentIDs)
	}
	return s.repo.List(ctx, f)
}

// Update edits the dates and notes of an active assignment. Changing the
// asset or the holder takes a return and a new assignment.
func (s *Service) Update(ctx context.Context, a *Assignment) error {
	a.Normalize()
	return s.inTx(ctx, func(ctx context.Context) error {
		stored, err := s.repo.GetForUpdate(ctx, a.ID)
		if err != nil {
			return notFound(err, a.ID.String())
		}
		if err := s.visible(ctx, stored); err != nil {
			return err
		}
		if stored.Status != StatusActive {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "a returned assignment cannot be edited")
		}
		if a.AssetID != stored.AssetID || !sameRef(a.UserID, stored.UserID) || !sameRef(a.DepartmentID, stored.DepartmentID) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"return the asset and create a new assignment to change the asset or holder")
		}
		a.Status, a.ReturnedAt = stored.Status, stored.ReturnedAt
		a.CreatedBy = stored.CreatedBy
		if a.Number == "" {
			a.Number = stored.Number
		}
		if err := a.Validate(ctx); err != nil {
			return err
		}
		audit.StampUpdated(ctx, &a.Authored)
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		return s.trail.Write(ctx, a.ID, audit.ActionUpdate, stored, a, "")
	})
}

// Delete marks a returned assignment deleted. Active ones must be returned.
func (s *Service) Delete(ctx context.Context, aID id.ID) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, aID)
		if err != nil {
			return notFound(err, aID.String())
		}
		if err := s.visible(ctx, a); err != nil {
			return err
		}
		if a.Status == StatusActive {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "return the asset before deleting the assignment")
		}
		if err := s.repo.SetDeletionMark(ctx, aID, true); err != nil {
			return err
		}
		return s.trail.Write(ctx, aID, audit.ActionDelete, a, nil, "")
	})
}

func (s *Service) History(ctx context.Context, aID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.GetByID(ctx, aID); err != nil {
		return nil, err
	}
	if s.trail.Audit == nil {
		return nil, nil
	}
	return s.trail.Audit.History(ctx, entityName, aID, limit)
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
