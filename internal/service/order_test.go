package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/service"
)

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Checkout(context.Background(), 1, "")
	assert.ErrorIs(t, err, service.ErrEmptyCart)

	orders, items, txns := f.store.Counts()
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Zero(t, txns)
	assert.Empty(t, f.events.Names)
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.user(t, "buyer", model.RoleUser)
	p := f.store.SeedProduct(1, "Kettle", "10.00", 5)
	_, err := f.cart.Add(ctx, buyer.ID, p.ID, 2)
	require.NoError(t, err)

	o, err := f.orders.Checkout(ctx, buyer.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "20.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, model.OrderStatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "10.00", o.Items[0].UnitPrice.StringFixed(2))
	require.NotNil(t, o.Transaction)
	assert.Equal(t, "20.00", o.Transaction.Amount.StringFixed(2))
	assert.Equal(t, model.TransactionStatusPending, o.Transaction.Status)
	assert.Equal(t, service.DefaultPaymentMethod, o.Transaction.Method)

	assert.Equal(t, 3, f.store.Stock(p.ID))
	cart, err := f.cart.List(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, cart)

	orders, items, txns := f.store.Counts()
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, items)
	assert.Equal(t, 1, txns)

	assert.Contains(t, f.events.Names, queue.EventOrderPlaced)
	assert.Contains(t, f.purges.Namespaces, service.CatalogNamespace)
}

func TestCheckoutTotalIsSumOfLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.SeedProduct(1, "A", "0.10", 100)
	b := f.store.SeedProduct(1, "B", "19.99", 100)
	c := f.store.SeedProduct(1, "C", "0.20", 100)
	for _, line := range []struct {
		id  uint64
		qty int
	}{{a.ID, 3}, {b.ID, 1}, {c.ID, 7}} {
		_, err := f.cart.Add(ctx, 7, line.id, line.qty)
		require.NoError(t, err)
	}

	o, err := f.orders.Checkout(ctx, 7, "card")
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.True(t, sum.Equal(o.TotalAmount))
	assert.Equal(t, "21.69", o.TotalAmount.StringFixed(2))
	assert.Equal(t, "card", o.Transaction.Method)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ok := f.store.SeedProduct(1, "Plenty", "1.00", 50)
	scarce := f.store.SeedProduct(1, "Scarce", "5.00", 1)
	_, err := f.cart.Add(ctx, 3, ok.ID, 4)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 3, scarce.ID, 2)
	require.NoError(t, err)

	_, err = f.orders.Checkout(ctx, 3, "")
	require.ErrorIs(t, err, service.ErrInsufficientStock)
	var pe *service.ProductError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, scarce.ID, pe.ProductID)
	assert.Equal(t, "Scarce", pe.Name)

	orders, items, txns := f.store.Counts()
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Zero(t, txns)
	// the first line was decremented inside the transaction and must be restored
	assert.Equal(t, 50, f.store.Stock(ok.ID))
	assert.Equal(t, 1, f.store.Stock(scarce.ID))
	cart, _ := f.cart.List(ctx, 3)
	assert.Len(t, cart, 2)
	assert.Empty(t, f.events.Names)
}

func TestCheckoutMissingProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.store.SeedProduct(1, "Keep", "1.00", 5)
	gone := f.store.SeedProduct(1, "Gone", "1.00", 5)
	_, err := f.cart.Add(ctx, 3, keep.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 3, gone.ID, 1)
	require.NoError(t, err)
	f.store.DropProduct(gone.ID)

	_, err = f.orders.Checkout(ctx, 3, "")
	require.ErrorIs(t, err, service.ErrProductNotFound)
	var pe *service.ProductError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, gone.ID, pe.ProductID)

	orders, _, _ := f.store.Counts()
	assert.Zero(t, orders)
	assert.Equal(t, 5, f.store.Stock(keep.ID))
}

func TestCheckoutFailureMidwayRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.store.SeedProduct(1, "Pot", "3.00", 5)
	_, err := f.cart.Add(ctx, 3, p.ID, 2)
	require.NoError(t, err)

	boom := errors.New("disk full")
	f.store.FailOn = func(step string) error {
		if step == "CreateTransaction" {
			return boom
		}
		return nil
	}
	_, err = f.orders.Checkout(ctx, 3, "")
	require.ErrorIs(t, err, boom)

	orders, items, txns := f.store.Counts()
	assert.Zero(t, orders+items+txns)
	assert.Equal(t, 5, f.store.Stock(p.ID))
	cart, _ := f.cart.List(ctx, 3)
	assert.Len(t, cart, 1)
}

func TestGetOrderIsStableAndScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.store.SeedProduct(1, "Cup", "2.50", 10)
	_, err := f.cart.Add(ctx, 3, p.ID, 2)
	require.NoError(t, err)
	placed, err := f.orders.Checkout(ctx, 3, "")
	require.NoError(t, err)

	first, err := f.orders.GetOrder(ctx, 3, placed.ID)
	require.NoError(t, err)
	second, err := f.orders.GetOrder(ctx, 3, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, placed.TotalAmount.String(), first.TotalAmount.String())

	_, err = f.orders.GetOrder(ctx, 4, placed.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestOrderKeepsPurchasePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "kettles", model.RoleSeller)
	p, err := f.catalog.Create(ctx, seller, service.ProductInput{Name: "Kettle", Price: decimal.RequireFromString("10.00"), Stock: 5})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 3, p.ID, 2)
	require.NoError(t, err)
	placed, err := f.orders.Checkout(ctx, 3, "")
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("99.00")
	_, err = f.catalog.Update(ctx, seller, p.ID, service.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, 3, placed.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "10.00", got.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "20.00", got.TotalAmount.StringFixed(2))

	list, err := f.orders.ListOrders(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, "10.00", list[0].Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "20.00", list[0].TotalAmount.StringFixed(2))
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.store.SeedProduct(1, "Cup", "1.00", 10)
	var ids []uint64
	for i := 0; i < 3; i++ {
		_, err := f.cart.Add(ctx, 3, p.ID, 1)
		require.NoError(t, err)
		o, err := f.orders.Checkout(ctx, 3, "")
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	list, err := f.orders.ListOrders(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
	for _, o := range list {
		assert.Len(t, o.Items, 1)
		assert.NotNil(t, o.Transaction)
	}
}

func placeOrder(t *testing.T, f *fixture) *model.Order {
	t.Helper()
	ctx := context.Background()
	p := f.store.SeedProduct(1, "Cup", "1.00", 10)
	_, err := f.cart.Add(ctx, 3, p.ID, 1)
	require.NoError(t, err)
	o, err := f.orders.Checkout(ctx, 3, "")
	require.NoError(t, err)
	return o
}

func TestSetOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := placeOrder(t, f)
	admin := service.Caller{ID: 1, Role: model.RoleAdmin}

	_, err := f.orders.SetOrderStatus(ctx, service.Caller{ID: 3, Role: model.RoleUser}, o.ID, "paid")
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = f.orders.SetOrderStatus(ctx, admin, o.ID, "  ")
	assert.ErrorIs(t, err, service.ErrValidation)
	_, err = f.orders.SetOrderStatus(ctx, admin, 99999, "paid")
	assert.ErrorIs(t, err, service.ErrNotFound)

	// lenient by default: any non-empty status is stored
	got, err := f.orders.SetOrderStatus(ctx, admin, o.ID, "delivered")
	require.NoError(t, err)
	assert.Equal(t, "delivered", got.Status)
	assert.Contains(t, f.events.Names, queue.EventOrderStatusChanged)

	again, err := f.orders.GetOrder(ctx, 3, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "delivered", again.Status)
	assert.True(t, again.TotalAmount.Equal(o.TotalAmount))
}

func TestSetOrderStatusStrict(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.StrictOrderTransitions = true })
	ctx := context.Background()
	o := placeOrder(t, f)
	seller := service.Caller{ID: 1, Role: model.RoleSeller}

	_, err := f.orders.SetOrderStatus(ctx, seller, o.ID, "shipped")
	assert.ErrorIs(t, err, service.ErrValidation)

	for _, st := range []string{"paid", "shipped", "delivered"} {
		_, err := f.orders.SetOrderStatus(ctx, seller, o.ID, st)
		require.NoError(t, err, st)
	}
	_, err = f.orders.SetOrderStatus(ctx, seller, o.ID, "cancelled")
	assert.ErrorIs(t, err, service.ErrValidation)
}

// staleOrders serves the status an order had before another writer moved it.
type staleOrders struct {
	service.OrderStore
	status string
}

func (s staleOrders) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := s.OrderStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = s.status
	return o, nil
}

func TestSetOrderStatusStrictLosesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := placeOrder(t, f)
	admin := service.Caller{ID: 1, Role: model.RoleAdmin}

	// another admin cancels after this caller has read "pending"
	_, err := f.orders.SetOrderStatus(ctx, admin, o.ID, "cancelled")
	require.NoError(t, err)

	strict := service.NewOrderService(staleOrders{OrderStore: f.store.Orders(), status: model.OrderStatusPending},
		f.events, f.purges, service.OrderOptions{StrictTransitions: true}, zap.NewNop())
	_, err = strict.SetOrderStatus(ctx, admin, o.ID, "paid")
	assert.ErrorIs(t, err, service.ErrValidation)

	got, err := f.orders.GetOrder(ctx, 3, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, service.CanTransition("pending", "paid"))
	assert.True(t, service.CanTransition("pending", "cancelled"))
	assert.True(t, service.CanTransition("paid", "shipped"))
	assert.False(t, service.CanTransition("pending", "delivered"))
	assert.False(t, service.CanTransition("cancelled", "paid"))
	assert.False(t, service.CanTransition("delivered", "shipped"))
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, service.Authorize(model.RoleAdmin, model.RoleSeller, model.RoleAdmin))
	assert.ErrorIs(t, service.Authorize(model.RoleUser, model.RoleSeller, model.RoleAdmin), service.ErrForbidden)
	assert.ErrorIs(t, service.Authorize(""), service.ErrForbidden)
}
