package maintenance

import (
	"context"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/core/security"
	"setflow/internal/core/tx"
	"setflow/internal/core/types"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/domain/events"
	"setflow/internal/domain/records"
)

const entityName = "maintenance"

// ActiveAssignments tells whether an asset is currently handed out.
// assignment.Service implements it.
type ActiveAssignments interface {
	HasActive(ctx context.Context, assetID string) (bool, error)
}

// Service runs maintenance jobs and keeps the asset's status in step.
type Service struct {
	repo        Repository
	assets      records.Assets
	assignments ActiveAssignments
	numerator   numerator.Generator
	txm         tx.Manager
	trail       domain.Trail
	now         func() time.Time
}

func NewService(
	repo Repository,
	assets records.Assets,
	assignments ActiveAssignments,
	gen numerator.Generator,
	rec audit.Recorder,
	pub events.Publisher,
) *Service {
	return &Service{
		repo:        repo,
		assets:      assets,
		assignments: assignments,
		numerator:   gen,
		trail:       domain.Trail{Audit: rec, Events: pub, Entity: entityName},
		now:         time.Now,
	}
}

// CompleteInput carries what is known once the job is done.
type CompleteInput struct {
	Cost  *types.Money
	Notes string
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
	return fmt.Errorf("get maintenance %s: %w", key, err)
}

// Create schedules a job. The asset must be visible to the caller and not
// retired or disposed.
func (s *Service) Create(ctx context.Context, m *Maintenance) error {
	if m.Status == "" {
		m.Status = StatusScheduled
	}
	if m.Status != StatusScheduled {
		return apperror.NewValidation("new jobs start as scheduled").WithDetail("field", "status")
	}
	m.StartedAt, m.CompletedAt = nil, nil
	if err := m.Validate(ctx); err != nil {
		return err
	}
	audit.StampCreated(ctx, &m.Authored)

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.checkAsset(ctx, m.AssetID); err != nil {
			return err
		}
		if m.Number == "" {
			number, err := s.numerator.GetNextNumber(ctx, numerator.YearlyConfig("MNT"), nil, m.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			m.Number = number
		}
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
		return s.trail.Write(ctx, m.ID, audit.ActionCreate, nil, m, events.MaintenanceCreated)
	})
}

func (s *Service) checkAsset(ctx context.Context, assetRef string) error {
	assetID, err := records.AssetID(assetRef)
	if err != nil {
		return err
	}
	a, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if a.DeletionMark {
		return apperror.NewAssetUnavailable(assetRef, "deleted")
	}
	if !a.IsActive() {
		return apperror.NewAssetUnavailable(assetRef, string(a.Status))
	}
	return nil
}

// GetByID hides jobs on assets the caller cannot see.
func (s *Service) GetByID(ctx context.Context, mID id.ID) (*Maintenance, error) {
	m, err := s.repo.GetByID(ctx, mID)
	if err != nil {
		return nil, notFound(err, mID.String())
	}
	if err := s.visible(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Maintenance, error) {
	m, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, number)
	}
	if err := s.visible(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) visible(ctx context.Context, m *Maintenance) error {
	assetID, err := records.AssetID(m.AssetID)
	if err != nil {
		return err
	}
	if _, err := s.assets.GetByID(ctx, assetID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound(entityName, m.ID.String())
		}
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Maintenance], error) {
	f.Clamp()
	for _, it := range f.Filters {
		if err := it.Validate(); err != nil {
			return domain.ListResult[*Maintenance]{}, apperror.NewValidation(err.Error()).WithDetail("field", it.Field)
		}
	}
	if scope := security.GetScope(ctx); !scope.SeesAllAssets() {
		f.DepartmentIDs = scope.FilterDepartments(f.DepartmentIDs)
	}
	return s.repo.List(ctx, f)
}

// Overdue lists scheduled jobs whose date has passed as of asOf.
func (s *Service) Overdue(ctx context.Context, asOf time.Time) ([]*Maintenance, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var depts []string
	if scope := security.GetScope(ctx); !scope.SeesAllAssets() {
		depts = scope.FilterDepartments(nil)
	}
	items, err := s.repo.Overdue(ctx, asOf, depts)
	if err != nil {
		return nil, fmt.Errorf("list overdue maintenance: %w", err)
	}
	return items, nil
}

// Update edits an open job. Status and timestamps move only through
// Start, Complete and Cancel; the asset can change while scheduled.
func (s *Service) Update(ctx context.Context, m *Maintenance) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		stored, err := s.repo.GetForUpdate(ctx, m.ID)
		if err != nil {
			return notFound(err, m.ID.String())
		}
		if err := s.visible(ctx, stored); err != nil {
			return err
		}
		if !stored.Status.Open() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "a closed maintenance job cannot be edited").
				WithDetail("status", string(stored.Status))
		}
		if m.Status != "" && m.Status != stored.Status {
			return apperror.NewInvalidTransition(entityName, string(stored.Status), string(m.Status)).
				WithDetail("hint", "use start, complete or cancel")
		}
		if m.AssetID != stored.AssetID {
			if stored.Status != StatusScheduled {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule, "the asset of a started job cannot change")
			}
			if err := s.checkAsset(ctx, m.AssetID); err != nil {
				return err
			}
		}
		m.Status = stored.Status
		m.StartedAt, m.CompletedAt = stored.StartedAt, stored.CompletedAt
		m.CreatedBy = stored.CreatedBy
		if m.Number == "" {
			m.Number = stored.Number
		}
		if err := m.Validate(ctx); err != nil {
			return err
		}
		audit.StampUpdated(ctx, &m.Authored)
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		return s.trail.Write(ctx, m.ID, audit.ActionUpdate, stored, m, "")
	})
}

// Delete marks a job deleted. Jobs in progress must be completed or
// cancelled first.
func (s *Service) Delete(ctx context.Context, mID id.ID) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, mID)
		if err != nil {
			return notFound(err, mID.String())
		}
		if err := s.visible(ctx, m); err != nil {
			return err
		}
		if m.Status == StatusInProgress {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "complete or cancel the job before deleting it").
				WithDetail("status", string(m.Status))
		}
		if err := s.repo.SetDeletionMark(ctx, mID, true); err != nil {
			return err
		}
		return s.trail.Write(ctx, mID, audit.ActionDelete, m, nil, "")
	})
}

// Start puts the asset into maintenance.
func (s *Service) Start(ctx context.Context, mID id.ID) (*Maintenance, error) {
	return s.move(ctx, mID, StatusInProgress, events.MaintenanceStarted, nil)
}

// Complete closes the job and hands the asset back.
func (s *Service) Complete(ctx context.Context, mID id.ID, in CompleteInput) (*Maintenance, error) {
	if in.Cost != nil && in.Cost.IsNegative() {
		return nil, apperror.NewValidation("cost cannot be negative").WithDetail("field", "cost")
	}
	return s.move(ctx, mID, StatusCompleted, events.MaintenanceCompleted, func(m *Maintenance) {
		if in.Cost != nil {
			m.Cost = *in.Cost
		}
		if in.Notes != "" {
			m.Notes = in.Notes
		}
	})
}

// Cancel drops the job; an in-progress job hands the asset back.
func (s *Service) Cancel(ctx context.Context, mID id.ID) (*Maintenance, error) {
	return s.move(ctx, mID, StatusCancelled, events.MaintenanceCancelled, nil)
}

func (s *Service) move(ctx context.Context, mID id.ID, to Status, eventType string, apply func(*Maintenance)) (*Maintenance, error) {
	var out *Maintenance
	err := s.inTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, mID)
		if err != nil {
			return notFound(err, mID.String())
		}
		if m.DeletionMark {
			return apperror.NewNotFound(entityName, mID.String())
		}
		if err := s.visible(ctx, m); err != nil {
			return err
		}
		if !m.Status.CanMoveTo(to) {
			return apperror.NewInvalidTransition(entityName, string(m.Status), string(to))
		}
		before := map[string]any{"status": m.Status}

		now := s.now().UTC()
		switch {
		case to == StatusInProgress:
			if err := s.holdAsset(ctx, m.AssetID); err != nil {
				return err
			}
			m.StartedAt = &now
		case m.Status == StatusInProgress:
			if err := s.releaseAsset(ctx, m); err != nil {
				return err
			}
		}
		if to == StatusCompleted {
			m.CompletedAt = &now
		}
		m.Status = to
		if apply != nil {
			apply(m)
		}
		audit.StampUpdated(ctx, &m.Authored)
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return s.trail.Write(ctx, mID, audit.ActionStatus, before, map[string]any{"status": m.Status}, eventType)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) holdAsset(ctx context.Context, assetRef string) error {
	assetID, err := records.AssetID(assetRef)
	if err != nil {
		return err
	}
	a, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if !a.IsActive() {
		return apperror.NewAssetUnavailable(assetRef, string(a.Status))
	}
	_, err = s.assets.ChangeStatus(ctx, assetID, asset.StatusMaintenance, a.AssignedTo, a.DepartmentID)
	return err
}

// releaseAsset returns the asset to assigned or available once no other
// job on it is in progress.
func (s *Service) releaseAsset(ctx context.Context, m *Maintenance) error {
	running, err := s.repo.InProgress(ctx, m.AssetID)
	if err != nil {
		return fmt.Errorf("list running maintenance: %w", err)
	}
	for _, other := range running {
		if other.ID != m.ID {
			return nil
		}
	}

	assetID, err := records.AssetID(m.AssetID)
	if err != nil {
		return err
	}
	a, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if a.Status != asset.StatusMaintenance {
		return nil
	}

	assigned := false
	if s.assignments != nil {
		if assigned, err = s.assignments.HasActive(ctx, m.AssetID); err != nil {
			return err
		}
	}
	if assigned {
		_, err = s.assets.ChangeStatus(ctx, assetID, asset.StatusAssigned, a.AssignedTo, a.DepartmentID)
	} else {
		_, err = s.assets.ChangeStatus(ctx, assetID, asset.StatusAvailable, nil, a.DepartmentID)
	}
	return err
}

func (s *Service) History(ctx context.Context, mID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.GetByID(ctx, mID); err != nil {
		return nil, err
	}
	if s.trail.Audit == nil {
		return nil, nil
	}
	return s.trail.Audit.History(ctx, entityName, mID, limit)
}
