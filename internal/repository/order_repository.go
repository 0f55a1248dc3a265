package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/model"
)

// CheckoutTx is the set of statements a checkout runs inside one database
// transaction.  Implementations must not commit on their own; the caller
// of OrderRepo.InTx decides commit or rollback from the closure's result.
type CheckoutTx interface {
	// CartItems returns the user's cart rows ordered by id.
	CartItems(ctx context.Context, userID uint64) ([]model.CartItem, error)
	// LockProducts row-locks the given products in id order and returns
	// the ones that exist keyed by id.
	LockProducts(ctx context.Context, ids []uint64) (map[uint64]*model.Product, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	// DecrementStock subtracts qty only while stock >= qty, otherwise it
	// returns ErrStockConflict.
	DecrementStock(ctx context.Context, productID uint64, qty int) error
	CreateOrderItem(ctx context.Context, it *model.OrderItem) error
	SetOrderTotal(ctx context.Context, orderID uint64, total decimal.Decimal) error
	ClearCart(ctx context.Context, userID uint64) (int64, error)
	CreateTransaction(ctx context.Context, t *model.Transaction) error
}

// OrderRepo reads orders and runs checkout transactions.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// InTx runs fn inside a single transaction.  A non-nil error from fn (or
// from Commit) rolls everything back.
func (r *OrderRepo) InTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const orderColumns = "id, user_id, total_amount, status, created_at"

// ListByUser returns the user's orders newest first with items and the
// transaction attached.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetForUser loads one order owned by userID.  Someone else's order is
// reported as ErrOrderNotFound.
func (r *OrderRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=? AND user_id=?", id, userID)
}

// GetByID loads any order regardless of owner.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=?", id)
}

// UpdateStatus overwrites the status column.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE orders SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	return err
}

// SwapStatus moves the order from one status to another only while it still
// holds from.  A lost race reports ErrStatusChanged.
func (r *OrderRepo) SwapStatus(ctx context.Context, id uint64, from, to string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE orders SET status=? WHERE id=? AND status=?", to, id, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id=?", id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrOrderNotFound
	case err != nil:
		return err
	}
	return ErrStatusChanged
}

func (r *OrderRepo) getOne(ctx context.Context, q string, args ...any) (*model.Order, error) {
	var o model.Order
	err := r.DB.QueryRowContext(ctx, q, args...).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	orders := []model.Order{o}
	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attach loads line items and transactions for orders in two queries.
func (r *OrderRepo) attach(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uint64, len(orders))
	index := make(map[uint64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []model.OrderItem{}
	}
	in := placeholders(len(ids))

	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id IN ("+in+") ORDER BY order_id, id",
		uint64Args(ids)...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			rows.Close()
			return err
		}
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.DB.QueryContext(ctx,
		"SELECT id, order_id, method, amount, status, created_at FROM transactions WHERE order_id IN ("+in+")",
		uint64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Method, &t.Amount, &t.Status, &t.CreatedAt); err != nil {
			return err
		}
		orders[index[t.OrderID]].Transaction = &t
	}
	return rows.Err()
}

// checkoutTx implements CheckoutTx on a *sql.Tx.
type checkoutTx struct{ tx *sql.Tx }

func (c *checkoutTx) CartItems(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	rows, err := c.tx.QueryContext(ctx,
		"SELECT id, user_id, product_id, quantity FROM cart_items WHERE user_id=? ORDER BY id FOR UPDATE", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCartItems(rows)
}

func (c *checkoutTx) LockProducts(ctx context.Context, ids []uint64) (map[uint64]*model.Product, error) {
	out := make(map[uint64]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := c.tx.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id IN ("+placeholders(len(ids))+") ORDER BY id FOR UPDATE",
		uint64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (c *checkoutTx) CreateOrder(ctx context.Context, o *model.Order) error {
	res, err := c.tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, total_amount, status) VALUES (?,?,?)",
		o.UserID, o.TotalAmount.StringFixed(2), o.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return c.tx.QueryRowContext(ctx, "SELECT created_at FROM orders WHERE id=?", o.ID).Scan(&o.CreatedAt)
}

func (c *checkoutTx) DecrementStock(ctx context.Context, productID uint64, qty int) error {
	res, err := c.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?", qty, productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStockConflict
	}
	return nil
}

func (c *checkoutTx) CreateOrderItem(ctx context.Context, it *model.OrderItem) error {
	res, err := c.tx.ExecContext(ctx,
		"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES (?,?,?,?)",
		it.OrderID, it.ProductID, it.Quantity, it.UnitPrice.StringFixed(2))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	return nil
}

func (c *checkoutTx) SetOrderTotal(ctx context.Context, orderID uint64, total decimal.Decimal) error {
	_, err := c.tx.ExecContext(ctx, "UPDATE orders SET total_amount=? WHERE id=?", total.StringFixed(2), orderID)
	return err
}

func (c *checkoutTx) ClearCart(ctx context.Context, userID uint64) (int64, error) {
	res, err := c.tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *checkoutTx) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	res, err := c.tx.ExecContext(ctx,
		"INSERT INTO transactions (order_id, method, amount, status) VALUES (?,?,?,?)",
		t.OrderID, t.Method, t.Amount.StringFixed(2), t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return c.tx.QueryRowContext(ctx, "SELECT created_at FROM transactions WHERE id=?", t.ID).Scan(&t.CreatedAt)
}
