package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// CatalogService owns product CRUD and listing.
type CatalogService struct {
	products ProductStore
	cache    CachePurger
	log      *zap.Logger
}

// NewCatalogService wires the service.  cache may be nil.
func NewCatalogService(products ProductStore, cache CachePurger, log *zap.Logger) *CatalogService {
	return &CatalogService{products: products, cache: cache, log: log}
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

// ProductPatch is a partial update; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
}

// Create adds a product owned by the caller.  Sellers and admins only.
func (s *CatalogService) Create(ctx context.Context, caller Caller, in ProductInput) (*model.Product, error) {
	if err := Authorize(caller.Role, model.RoleSeller, model.RoleAdmin); err != nil {
		return nil, err
	}
	p := &model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		SellerID:    caller.ID,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.purge(ctx)
	return p, nil
}

// Get returns one product.
func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return p, nil
}

// List validates the query and returns one page plus the total count.
func (s *CatalogService) List(ctx context.Context, q repository.ProductQuery) ([]model.Product, int64, error) {
	if q.SortBy != "" && !repository.IsSortable(q.SortBy) {
		return nil, 0, validationf("sort_by must be one of id, name, price, stock, created_at")
	}
	if q.Page < 0 || q.Limit < 0 {
		return nil, 0, validationf("page and limit must be positive")
	}
	if q.MinPrice != nil && q.MinPrice.IsNegative() {
		return nil, 0, validationf("min_price must be >= 0")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, 0, validationf("min_price must not exceed max_price")
	}
	return s.products.List(ctx, q.Normalize())
}

// Update applies patch to a product the caller owns (or any product for an
// admin).
func (s *CatalogService) Update(ctx context.Context, caller Caller, id uint64, patch ProductPatch) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	if err := authorizeOwner(caller, p.SellerID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, notFound(err, "product", id)
	}
	s.purge(ctx)
	return p, nil
}

// Delete removes a product the caller owns (or any product for an admin).
func (s *CatalogService) Delete(ctx context.Context, caller Caller, id uint64) error {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "product", id)
	}
	if err := authorizeOwner(caller, p.SellerID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return notFound(err, "product", id)
	}
	s.purge(ctx)
	return nil
}

// Export returns the products to put in a spreadsheet: a seller's own
// products, or everything for an admin.
func (s *CatalogService) Export(ctx context.Context, caller Caller) ([]model.Product, error) {
	if err := Authorize(caller.Role, model.RoleSeller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if caller.Role == model.RoleAdmin {
		return s.products.ListBySeller(ctx, nil)
	}
	id := caller.ID
	return s.products.ListBySeller(ctx, &id)
}

func (s *CatalogService) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx, CatalogNamespace); err != nil {
		s.log.Warn("catalog cache purge failed", zap.Error(err))
	}
}

func validateProduct(p *model.Product) error {
	switch {
	case p.Name == "":
		return validationf("name is required")
	case len(p.Name) > 255:
		return validationf("name must be at most 255 characters")
	case p.Price.IsNegative():
		return validationf("price must be >= 0")
	case !p.Price.Equal(p.Price.Round(2)):
		return validationf("price must have at most two decimal places")
	case p.Stock < 0:
		return validationf("stock must be >= 0")
	case len(p.ImageURL) > 255:
		return validationf("image_url must be at most 255 characters")
	}
	return nil
}

// notFound turns the repository's missing-row sentinels into ErrNotFound.
func notFound(err error, what string, id uint64) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}
