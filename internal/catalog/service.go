package catalog

import (
	"context"
	"strings"
)

type CreateProductRequest struct {
	Name   string
	Status string
}

type CreateLocationRequest struct {
	Name   string
	Active bool
}

type Service interface {
	// CheckBookable confirms the product is active and the location active.
	// Returns nil when a hold or booking may be created against the pair.
	CheckBookable(ctx context.Context, productID, locationID string) error

	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	UpdateProductStatus(ctx context.Context, id string, status string) (*Product, error)

	CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error)
	GetLocation(ctx context.Context, id string) (*Location, error)
	ListLocations(ctx context.Context) ([]*Location, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validProductStatus(s ProductStatus) bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusInactive:
		return true
	}
	return false
}

func (s *service) CheckBookable(ctx context.Context, productID, locationID string) error {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Status != ProductStatusActive {
		return ErrProductNotBookable
	}

	l, err := s.repo.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if !l.Active {
		return ErrLocationInactive
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}

	status := ProductStatus(req.Status)
	if req.Status == "" {
		status = ProductStatusDraft
	}
	if !validProductStatus(status) {
		return nil, ErrInvalidStatus
	}

	p := &Product{
		Name:   req.Name,
		Status: status,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *service) ListProducts(ctx context.Context) ([]*Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *service) UpdateProductStatus(ctx context.Context, id string, status string) (*Product, error) {
	st := ProductStatus(status)
	if !validProductStatus(st) {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateProductStatus(ctx, id, st); err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}

	l := &Location{
		Name:   req.Name,
		Active: req.Active,
	}
	if err := s.repo.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) GetLocation(ctx context.Context, id string) (*Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *service) ListLocations(ctx context.Context) ([]*Location, error) {
	return s.repo.ListLocations(ctx)
}
