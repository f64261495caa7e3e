package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/upmarkt/backend/internal/domain/model"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

var ErrPackageNotFound = errors.New("package not found")

type PackageStore interface {
	List(ctx context.Context) ([]pgrepo.PackageRecord, error)
	FindByID(ctx context.Context, packageID int64) (pgrepo.PackageRecord, error)
}

type Cache interface {
	Get(ctx context.Context) ([]model.Package, bool, error)
	Set(ctx context.Context, packages []model.Package) error
}

type Service struct {
	packages PackageStore
	cache    Cache
}

func NewService(packages PackageStore) *Service {
	return &Service{packages: packages}
}

func (s *Service) AttachCache(cache Cache) {
	s.cache = cache
}

// List returns the catalog cheapest-first. The cache is best effort: a miss
// or a cache failure falls through to postgres.
func (s *Service) List(ctx context.Context) ([]model.Package, error) {
	if s.packages == nil {
		return nil, fmt.Errorf("package store is nil")
	}

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx); err == nil && ok {
			return cached, nil
		}
	}

	records, err := s.packages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	packages := make([]model.Package, 0, len(records))
	for _, record := range records {
		packages = append(packages, toModel(record))
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, packages)
	}

	return packages, nil
}

func (s *Service) Get(ctx context.Context, packageID int64) (model.Package, error) {
	if s.packages == nil {
		return model.Package{}, fmt.Errorf("package store is nil")
	}

	record, err := s.packages.FindByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPackageNotFound) {
			return model.Package{}, ErrPackageNotFound
		}
		return model.Package{}, fmt.Errorf("find package: %w", err)
	}

	return toModel(record), nil
}

func toModel(record pgrepo.PackageRecord) model.Package {
	return model.Package{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Benefits:    record.Benefits,
		PriceMinor:  record.PriceMinor,
		Currency:    record.Currency,
		PaymentLink: record.PaymentLink,
		CreatedAt:   record.CreatedAt,
	}
}
