package department

import (
	"context"
	"fmt"
	"time"

	"setflow/internal/core/apperror"
	"setflow/internal/core/numerator"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
	"setflow/internal/domain/events"
)

// Service provides business logic for the department catalog.
type Service struct {
	*domain.CatalogService[*Department]
	repo      Repository
	numerator numerator.Generator
}

func NewService(repo Repository, gen numerator.Generator, rec audit.Recorder, pub events.Publisher) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Department]{
		Repo:       repo,
		Audit:      rec,
		Events:     pub,
		EntityName: "department",
	})
	svc := &Service{CatalogService: base, repo: repo, numerator: gen}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeDelete, svc.checkUnused)
	return svc
}

func (s *Service) prepareForCreate(ctx context.Context, d *Department) error {
	if d.Code != "" {
		return nil
	}
	code, err := s.numerator.GetNextNumber(ctx, numerator.PlainConfig("DEP"), nil, time.Now())
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	d.Code = code
	return nil
}

func (s *Service) checkUnused(ctx context.Context, d *Department) error {
	n, err := s.repo.CountAssets(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("count assets: %w", err)
	}
	if n > 0 {
		return apperror.NewInUse("department", d.ID.String(), n)
	}
	return nil
}
