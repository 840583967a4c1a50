package asset

import (
	"context"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/core/numerator"
	"setflow/internal/core/security"
	"setflow/internal/domain"
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/events"
	"setflow/internal/domain/spectemplate"
)

// Service provides business logic for the asset catalog.
type Service struct {
	*domain.CatalogService[*Asset]
	repo       Repository
	categories assetform.CategorySource
	numerator  numerator.Generator
	now        func() time.Time
}

func NewService(
	repo Repository,
	categories assetform.CategorySource,
	gen numerator.Generator,
	rec audit.Recorder,
	pub events.Publisher,
) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Asset]{
		Repo:       repo,
		Audit:      rec,
		Events:     pub,
		EntityName: "asset",
	})
	svc := &Service{
		CatalogService: base,
		repo:           repo,
		categories:     categories,
		numerator:      gen,
		now:            time.Now,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.prepareForUpdate)
	base.Hooks().On(domain.BeforeDelete, svc.checkDeletable)

	return svc
}

func (s *Service) Categories() assetform.CategorySource { return s.categories }

func (s *Service) Create(ctx context.Context, a *Asset) error {
	a.Normalize()
	if a.Status == "" {
		a.Status = StatusAvailable
	}
	if err := s.checkDepartment(ctx, a); err != nil {
		return err
	}
	audit.StampCreated(ctx, &a.Authored)
	return s.CatalogService.Create(ctx, a)
}

func (s *Service) Update(ctx context.Context, a *Asset) error {
	a.Normalize()
	if err := s.checkDepartment(ctx, a); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &a.Authored)
	return s.CatalogService.Update(ctx, a)
}

// GetByID hides assets outside the caller's departments.
func (s *Service) GetByID(ctx context.Context, assetID id.ID) (*Asset, error) {
	a, err := s.CatalogService.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !security.GetScope(ctx).CanAccessDepartment(a.DepartmentKey()) {
		return nil, apperror.NewNotFound("asset", assetID.String())
	}
	return a, nil
}

// Delete marks the asset deleted when the caller may see it.
func (s *Service) Delete(ctx context.Context, assetID id.ID) error {
	if _, err := s.GetByID(ctx, assetID); err != nil {
		return err
	}
	return s.CatalogService.Delete(ctx, assetID)
}

// List narrows the filter to the departments the caller may see.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Asset], error) {
	scope := security.GetScope(ctx)
	if !scope.SeesAllAssets() {
		f.DepartmentIDs = scope.FilterDepartments(f.DepartmentIDs)
	}
	return s.CatalogService.List(ctx, f)
}

func (s *Service) checkDepartment(ctx context.Context, a *Asset) error {
	if a.DepartmentID == nil {
		return nil
	}
	if !security.GetScope(ctx).CanAccessDepartment(*a.DepartmentID) {
		return apperror.NewForbidden("department is outside your scope").
			WithDetail("departmentId", *a.DepartmentID)
	}
	return nil
}

func (s *Service) prepareForCreate(ctx context.Context, a *Asset) error {
	if a.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.PlainConfig("AST"), nil, s.now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		a.Code = code
	}
	return s.checkSpecifications(ctx, a)
}

// prepareForUpdate keeps status and holder as stored; those move only
// through records or retire/dispose.
func (s *Service) prepareForUpdate(ctx context.Context, a *Asset) error {
	stored, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if a.Status != "" && a.Status != stored.Status {
		return apperror.NewInvalidTransition("asset", string(stored.Status), string(a.Status)).
			WithDetail("hint", "use assignments, maintenance, retire or dispose")
	}
	a.Status = stored.Status
	a.AssignedTo = stored.AssignedTo
	if a.Code == "" {
		a.Code = stored.Code
	}
	a.CreatedBy = stored.CreatedBy
	return s.checkSpecifications(ctx, a)
}

func (s *Service) checkDeletable(ctx context.Context, a *Asset) error {
	if a.Status == StatusAssigned || a.Status == StatusMaintenance {
		return apperror.NewAssetUnavailable(a.ID.String(), string(a.Status))
	}
	return nil
}

// checkSpecifications evaluates the category template's required flags and
// rules against the asset's specifications. Values for ids outside the
// template are left alone.
func (s *Service) checkSpecifications(ctx context.Context, a *Asset) error {
	fields, err := s.categories.Template(ctx, a.CategoryID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("category does not exist").WithDetail("field", "categoryId")
		}
		return err
	}
	rules, err := spectemplate.CompileRules(fields)
	if err != nil {
		return err
	}
	if failed := rules.Check(a.Specifications); len(failed) > 0 {
		return apperror.NewValidation("specifications failed validation").
			WithDetail("field", "specifications").
			WithDetail("fields", failed)
	}
	return nil
}

// --- Status ---

// ChangeStatus moves the asset along its lifecycle. assignedTo and
// departmentID replace the stored values; pass the current ones to keep
// them. Callers running inside a record transaction join it.
func (s *Service) ChangeStatus(ctx context.Context, assetID id.ID, to Status, assignedTo, departmentID *string) (*Asset, error) {
	var changed *Asset
	err := s.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		if a.DeletionMark {
			return apperror.NewAssetUnavailable(assetID.String(), "deleted")
		}
		if !a.Status.CanMoveTo(to) {
			return apperror.NewInvalidTransition("asset", string(a.Status), string(to))
		}
		before := map[string]any{"status": a.Status, "assignedTo": a.AssignedTo, "departmentId": a.DepartmentID}
		if err := s.repo.UpdateStatus(ctx, assetID, to, assignedTo, departmentID); err != nil {
			return err
		}
		a.Status, a.AssignedTo, a.DepartmentID = to, assignedTo, departmentID
		after := map[string]any{"status": a.Status, "assignedTo": a.AssignedTo, "departmentId": a.DepartmentID}
		changed = a
		return s.Trail(ctx, assetID, audit.ActionStatus, before, after, events.AssetStatusChanged)
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// Retire takes an available asset out of service.
func (s *Service) Retire(ctx context.Context, assetID id.ID) (*Asset, error) {
	return s.endOfLife(ctx, assetID, StatusRetired)
}

// Dispose removes an available or retired asset for good.
func (s *Service) Dispose(ctx context.Context, assetID id.ID) (*Asset, error) {
	return s.endOfLife(ctx, assetID, StatusDisposed)
}

func (s *Service) endOfLife(ctx context.Context, assetID id.ID, to Status) (*Asset, error) {
	a, err := s.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusAssigned || a.Status == StatusMaintenance {
		return nil, apperror.NewAssetUnavailable(assetID.String(), string(a.Status))
	}
	return s.ChangeStatus(ctx, assetID, to, nil, a.DepartmentID)
}

// --- Depreciation ---

// Depreciation computes the schedule and book value from the category's
// settings as of asOf.
func (s *Service) Depreciation(ctx context.Context, assetID id.ID, asOf time.Time) (depreciation.Summary, error) {
	a, err := s.GetByID(ctx, assetID)
	if err != nil {
		return depreciation.Summary{}, err
	}
	settings, err := s.categories.Depreciation(ctx, a.CategoryID)
	if err != nil {
		return depreciation.Summary{}, err
	}
	if settings == nil {
		return depreciation.Summary{}, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"the asset's category has no depreciation settings").
			WithDetail("categoryId", a.CategoryID)
	}
	if a.PurchaseDate == nil {
		return depreciation.Summary{}, apperror.NewValidation("asset has no purchase date").
			WithDetail("field", "purchaseDate")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return settings.Summarize(a.PurchasePrice, *a.PurchaseDate, asOf), nil
}
