package service

import (
	"context"
	"fmt"

	"github.com/cargoyard/cargoyard/internal/model"
)

// CrateLister lists crates.
type CrateLister interface {
	ListCrates(ctx context.Context, q model.CrateQuery) (*model.CratePage, error)
}

// CrateService serves crate listings.
type CrateService struct {
	repo CrateLister
}

// NewCrateService creates a new CrateService.
func NewCrateService(repo CrateLister) *CrateService {
	return &CrateService{repo: repo}
}

// List returns one page of crates matching q after normalizing its paging.
func (s *CrateService) List(ctx context.Context, q model.CrateQuery) (*model.CratePage, error) {
	page, err := s.repo.ListCrates(ctx, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list crates: %w", err)
	}
	if page.Crates == nil {
		page.Crates = []*model.Crate{}
	}
	return page, nil
}
