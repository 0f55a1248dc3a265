package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// MaxCartQuantity bounds a single cart line.
const MaxCartQuantity = 10000

// CartService manages the caller's cart.  Every operation is scoped by the
// caller's id.
type CartService struct {
	carts    CartStore
	products ProductStore
}

func NewCartService(carts CartStore, products ProductStore) *CartService {
	return &CartService{carts: carts, products: products}
}

// Add puts qty units of a product in the cart, incrementing an existing
// line for the same product.
func (s *CartService) Add(ctx context.Context, userID, productID uint64, qty int) (*model.CartItem, error) {
	if productID == 0 {
		return nil, validationf("product_id is required")
	}
	if qty <= 0 {
		return nil, validationf("quantity must be greater than 0")
	}
	if qty > MaxCartQuantity {
		return nil, validationf("quantity must be at most %d", MaxCartQuantity)
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return nil, err
	}
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.ProductID == productID && it.Quantity+qty > MaxCartQuantity {
			return nil, validationf("quantity of product %d would exceed %d", productID, MaxCartQuantity)
		}
	}
	return s.carts.Add(ctx, userID, productID, qty)
}

// List returns the cart in insertion order.
func (s *CartService) List(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	return s.carts.ListByUser(ctx, userID)
}

// UpdateQuantity sets an item's quantity.  Someone else's item is reported
// as not found.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID uint64, qty int) (*model.CartItem, error) {
	if qty <= 0 {
		return nil, validationf("quantity must be greater than 0")
	}
	if qty > MaxCartQuantity {
		return nil, validationf("quantity must be at most %d", MaxCartQuantity)
	}
	it, err := s.carts.UpdateQuantity(ctx, itemID, userID, qty)
	if err != nil {
		return nil, notFound(err, "cart item", itemID)
	}
	return it, nil
}

// Remove deletes one item.
func (s *CartService) Remove(ctx context.Context, userID, itemID uint64) error {
	return notFound(s.carts.Delete(ctx, itemID, userID), "cart item", itemID)
}

// Clear empties the cart and returns the number of removed rows.
func (s *CartService) Clear(ctx context.Context, userID uint64) (int64, error) {
	return s.carts.Clear(ctx, userID)
}
