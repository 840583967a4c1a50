package category

import (
	"context"
	"fmt"
	"strings"

	"setflow/internal/core/apperror"
	"setflow/internal/core/id"
	"setflow/internal/domain"
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/depreciation"
	"setflow/internal/domain/events"
	"setflow/internal/domain/spectemplate"
	"setflow/pkg/logger"
)

// Service provides business logic for the category catalog.
type Service struct {
	*domain.CatalogService[*Category]
	repo     Repository
	registry *spectemplate.Registry
}

func NewService(repo Repository, registry *spectemplate.Registry, rec audit.Recorder, pub events.Publisher) *Service {
	if registry == nil {
		registry = spectemplate.DefaultRegistry()
	}
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Category]{
		Repo:       repo,
		Audit:      rec,
		Events:     pub,
		EntityName: "category",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		registry:       registry,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.prepareForUpdate)
	base.Hooks().On(domain.BeforeDelete, svc.checkUnused)

	return svc
}

func (s *Service) Registry() *spectemplate.Registry { return s.registry }

// prepareForCreate fills the code and seeds the template from the registry.
func (s *Service) prepareForCreate(ctx context.Context, c *Category) error {
	if strings.TrimSpace(c.Code) == "" {
		c.Code = CodeFromName(c.Name)
	}
	if len(c.SpecFields) == 0 && !c.IsFolder {
		c.SpecFields = s.registry.Defaults(c.Name)
	}
	c.SpecFields = spectemplate.Normalize(c.SpecFields)
	return nil
}

func (s *Service) prepareForUpdate(ctx context.Context, c *Category) error {
	if strings.TrimSpace(c.Code) == "" {
		c.Code = CodeFromName(c.Name)
	}
	c.SpecFields = spectemplate.Normalize(c.SpecFields)
	return nil
}

func (s *Service) checkUnused(ctx context.Context, c *Category) error {
	n, err := s.repo.CountAssets(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("count assets: %w", err)
	}
	if n > 0 {
		return apperror.NewInUse("category", c.ID.String(), n)
	}
	return nil
}

// --- Template editing ---

// Editor opens an editing session on the stored template.
func (s *Service) Editor(ctx context.Context, categoryID id.ID) (*spectemplate.Editor, error) {
	c, err := s.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return spectemplate.NewEditor(c.ID.String(), c.Name, c.SpecFields, s.registry), nil
}

// ReplaceTemplate saves fields as the whole template of the category.
func (s *Service) ReplaceTemplate(ctx context.Context, categoryID id.ID, fields []spectemplate.Field) (spectemplate.Template, error) {
	c, err := s.GetByID(ctx, categoryID)
	if err != nil {
		return spectemplate.Template{}, err
	}
	ed := spectemplate.NewEditor(c.ID.String(), c.Name, fields, s.registry)
	return ed.Save(ctx, s.persister(categoryID))
}

// ApplyOps runs editor ops against the stored template and saves the result.
func (s *Service) ApplyOps(ctx context.Context, categoryID id.ID, ops []spectemplate.Op) (spectemplate.Template, error) {
	ed, err := s.Editor(ctx, categoryID)
	if err != nil {
		return spectemplate.Template{}, err
	}
	if err := ed.Apply(ops); err != nil {
		if _, ok := apperror.AsAppError(err); ok {
			return spectemplate.Template{}, err
		}
		return spectemplate.Template{}, apperror.NewValidation(err.Error())
	}
	return ed.Save(ctx, s.persister(categoryID))
}

// persister writes a saved template back to the locked category row.
func (s *Service) persister(categoryID id.ID) spectemplate.Persister {
	return spectemplate.PersisterFunc(func(ctx context.Context, t spectemplate.Template) error {
		return s.InTx(ctx, func(ctx context.Context) error {
			c, err := s.repo.GetForUpdate(ctx, categoryID)
			if err != nil {
				return err
			}
			before := c.Template()
			c.SpecFields = t.Fields
			if err := s.repo.Update(ctx, c); err != nil {
				return err
			}
			return s.Trail(ctx, c.ID, audit.ActionUpdate,
				map[string]any{"specFields": before.Fields},
				map[string]any{"specFields": t.Fields},
				events.TemplateSaved)
		})
	})
}

// Defaults is the registry lookup behind "reset to default".
func (s *Service) Defaults(name string) []spectemplate.Field {
	return s.registry.Defaults(name)
}

// --- assetform.CategorySource ---

// Source adapts the service to what the asset form reads.
func (s *Service) Source() assetform.CategorySource { return source{s} }

type source struct{ s *Service }

func (src source) Template(ctx context.Context, categoryID string) ([]spectemplate.Field, error) {
	c, err := src.load(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return c.SpecFields, nil
}

func (src source) Depreciation(ctx context.Context, categoryID string) (*depreciation.Settings, error) {
	c, err := src.load(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return c.Depreciation.Settings, nil
}

func (src source) Groups(ctx context.Context) ([]assetform.Group, error) {
	cats, err := src.s.repo.Groups(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]assetform.Group, 0, len(cats))
	for _, c := range cats {
		groups = append(groups, assetform.Group{ID: c.ID.String(), Name: c.Name})
	}
	return groups, nil
}

func (src source) load(ctx context.Context, categoryID string) (*Category, error) {
	cid, err := id.Parse(categoryID)
	if err != nil {
		return nil, apperror.NewValidation("invalid category id").WithDetail("categoryId", categoryID)
	}
	c, err := src.s.GetByID(ctx, cid)
	if err != nil {
		logger.Warn(ctx, "category lookup failed", "category_id", categoryID, "error", err)
		return nil, err
	}
	return c, nil
}
