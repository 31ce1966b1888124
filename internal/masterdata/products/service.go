package products

import (
	"context"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// SearchActive returns active products matching the query, for the purchase
// order form autocomplete.
func (s *Service) SearchActive(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.repo.SearchActive(ctx, query, limit)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

// Update writes the product; when the price changed a history row is appended
// in the same transaction.
func (s *Service) Update(ctx context.Context, id int64, product Product, actorID int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product, actorID)
}

func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	if productID <= 0 {
		return nil, shared.ErrInvalidID
	}
	return s.repo.PriceHistory(ctx, productID)
}

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
