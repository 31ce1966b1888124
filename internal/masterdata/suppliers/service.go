package suppliers

import (
	"context"
	"errors"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// GetWithMetric loads a supplier together with its delivery metric, if one has
// been calculated yet.
func (s *Service) GetWithMetric(ctx context.Context, id int64) (Supplier, *Metric, error) {
	supplier, err := s.Get(ctx, id)
	if err != nil {
		return Supplier{}, nil, err
	}
	metric, err := s.repo.GetMetric(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return supplier, nil, nil
	}
	if err != nil {
		return Supplier{}, nil, err
	}
	return supplier, &metric, nil
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(supplier); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, supplier)
}

// Deactivate flips the supplier inactive instead of deleting it; orders keep
// their supplier reference.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.SetActive(ctx, id, true)
}
