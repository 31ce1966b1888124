package categories

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

// Tree returns all categories assembled into their display tree.
func (s *Service) Tree(ctx context.Context) ([]*TreeNode, error) {
	flat, _, err := s.repo.List(ctx, shared.ListFilters{})
	if err != nil {
		return nil, err
	}
	return BuildTree(flat), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(ctx, 0, category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, category Category) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(ctx, id, category); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, category)
}

// Delete refuses categories that still have children.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: category has subcategories", shared.ErrInUse)
	}
	return s.repo.Delete(ctx, id)
}
