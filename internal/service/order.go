package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// DefaultPaymentMethod is recorded when checkout is called without one.
const DefaultPaymentMethod = "bank_transfer"

type OrderOptions struct {
	DefaultPaymentMethod string
	// StrictTransitions enforces the status transition table in
	// SetOrderStatus.  When false any non-empty status is accepted.
	StrictTransitions bool
}

// OrderService runs checkout and order reads and status changes.
type OrderService struct {
	orders OrderStore
	events EventPublisher
	cache  CachePurger
	opts   OrderOptions
	log    *zap.Logger
}

// NewOrderService wires the service.  cache may be nil.
func NewOrderService(orders OrderStore, events EventPublisher, cache CachePurger, opts OrderOptions, log *zap.Logger) *OrderService {
	if strings.TrimSpace(opts.DefaultPaymentMethod) == "" {
		opts.DefaultPaymentMethod = DefaultPaymentMethod
	}
	return &OrderService{orders: orders, events: events, cache: cache, opts: opts, log: log}
}

// Checkout turns the user's cart into an order in one transaction.  Either
// the order, its items, the transaction record, the stock decrements and
// the cart deletion all become visible, or none of them do.
func (s *OrderService) Checkout(ctx context.Context, userID uint64, paymentMethod string) (*model.Order, error) {
	method := strings.TrimSpace(paymentMethod)
	if method == "" {
		method = s.opts.DefaultPaymentMethod
	}
	if len(method) > 50 {
		return nil, validationf("payment_method must be at most 50 characters")
	}

	var order *model.Order
	err := s.orders.InTx(ctx, func(tx repository.CheckoutTx) error {
		items, err := tx.CartItems(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		o := &model.Order{UserID: userID, TotalAmount: decimal.Zero, Status: model.OrderStatusPending}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}

		ids := make([]uint64, 0, len(items))
		seen := make(map[uint64]bool, len(items))
		for _, it := range items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID)
			}
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		lines := make([]model.OrderItem, 0, len(items))
		for _, it := range items {
			p, ok := products[it.ProductID]
			if !ok {
				return &ProductError{ProductID: it.ProductID, Err: ErrProductNotFound}
			}
			if p.Stock < it.Quantity {
				return &ProductError{ProductID: p.ID, Name: p.Name, Err: ErrInsufficientStock}
			}
			if err := tx.DecrementStock(ctx, p.ID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return &ProductError{ProductID: p.ID, Name: p.Name, Err: ErrInsufficientStock}
				}
				return err
			}
			p.Stock -= it.Quantity

			line := model.OrderItem{OrderID: o.ID, ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price}
			if err := tx.CreateOrderItem(ctx, &line); err != nil {
				return err
			}
			total = total.Add(line.Subtotal())
			lines = append(lines, line)
		}

		if err := tx.SetOrderTotal(ctx, o.ID, total); err != nil {
			return err
		}
		o.TotalAmount = total

		if _, err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}

		t := &model.Transaction{OrderID: o.ID, Method: method, Amount: total, Status: model.TransactionStatusPending}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}

		o.Items = lines
		o.Transaction = t
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.Uint64("order_id", order.ID),
		zap.Uint64("user_id", userID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	s.publish(ctx, queue.EventOrderPlaced, queue.OrderPlacedEvent{
		OrderID:       order.ID,
		UserID:        userID,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		ItemCount:     len(order.Items),
		PaymentMethod: method,
		PlacedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
	})
	if s.cache != nil {
		if err := s.cache.Purge(ctx, CatalogNamespace); err != nil {
			s.log.Warn("catalog cache purge failed", zap.Error(err))
		}
	}
	return order, nil
}

// ListOrders returns the user's orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uint64) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetOrder returns one of the user's orders.  Orders of other users are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uint64) (*model.Order, error) {
	o, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return o, nil
}

// SetOrderStatus changes an order's status.  Admins and sellers only.
func (s *OrderService) SetOrderStatus(ctx context.Context, caller Caller, orderID uint64, status string) (*model.Order, error) {
	if err := Authorize(caller.Role, model.RoleAdmin, model.RoleSeller); err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil, validationf("status is required")
	}
	if len(status) > 50 {
		return nil, validationf("status must be at most 50 characters")
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	from := o.Status
	if s.opts.StrictTransitions {
		if !CanTransition(from, status) {
			return nil, validationf("cannot move order from %q to %q", from, status)
		}
		err = s.orders.SwapStatus(ctx, orderID, from, status)
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, validationf("order %d is no longer %q", orderID, from)
		}
	} else {
		err = s.orders.UpdateStatus(ctx, orderID, status)
	}
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	o.Status = status

	s.publish(ctx, queue.EventOrderStatusChanged, queue.OrderStatusChangedEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		To:        status,
		ChangedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return o, nil
}

func (s *OrderService) publish(ctx context.Context, name string, ev any) {
	if err := s.events.Publish(ctx, name, ev); err != nil {
		s.log.Warn("event not published", zap.String("event", name), zap.Error(err))
	}
}

// transitions lists the allowed next states per state.  delivered and
// cancelled are terminal.
var transitions = map[string][]string{
	model.OrderStatusPending: {model.OrderStatusPaid, model.OrderStatusCancelled},
	model.OrderStatusPaid:    {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped: {model.OrderStatusDelivered},
}

// CanTransition reports whether the strict table allows from -> to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
