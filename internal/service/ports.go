package service

import (
	"context"
	"time"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// The store interfaces below are satisfied by the MySQL repositories in
// internal/repository and by the in-memory store in internal/testutil.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	MarkVerified(ctx context.Context, id uint64) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	List(ctx context.Context, q repository.ProductQuery) ([]model.Product, int64, error)
	ListBySeller(ctx context.Context, sellerID *uint64) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id uint64) error
}

type CartStore interface {
	Add(ctx context.Context, userID, productID uint64, qty int) (*model.CartItem, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.CartItem, error)
	UpdateQuantity(ctx context.Context, id, userID uint64, qty int) (*model.CartItem, error)
	Delete(ctx context.Context, id, userID uint64) error
	Clear(ctx context.Context, userID uint64) (int64, error)
}

type OrderStore interface {
	InTx(ctx context.Context, fn func(tx repository.CheckoutTx) error) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Order, error)
	GetForUser(ctx context.Context, id, userID uint64) (*model.Order, error)
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
	SwapStatus(ctx context.Context, id uint64, from, to string) error
}

// EventPublisher delivers domain events after the fact.  Failures never
// undo committed work.
type EventPublisher interface {
	Publish(ctx context.Context, name string, event any) error
}

// CachePurger drops cached responses of one namespace.
type CachePurger interface {
	Purge(ctx context.Context, namespace string) error
}

// CatalogNamespace is the response-cache namespace of public product reads.
const CatalogNamespace = "products"
