package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/storefront-api/internal/model"
)

// CartRepo manages cart_items.  Every method is scoped by user id so a
// foreign item behaves exactly like a missing one.
type CartRepo struct{ DB *sql.DB }

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{DB: db} }

// Add inserts (userID, productID, qty) or increments the existing row's
// quantity, and returns the resulting row.
func (r *CartRepo) Add(ctx context.Context, userID, productID uint64, qty int) (*model.CartItem, error) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		userID, productID, qty)
	if err != nil {
		return nil, err
	}
	// LastInsertId is unreliable for the update branch, so read the row back.
	var it model.CartItem
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, product_id, quantity FROM cart_items WHERE user_id=? AND product_id=?",
		userID, productID).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ListByUser returns the caller's cart in insertion order.
func (r *CartRepo) ListByUser(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, product_id, quantity FROM cart_items WHERE user_id=? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCartItems(rows)
}

// UpdateQuantity sets the quantity of one of the caller's items.
func (r *CartRepo) UpdateQuantity(ctx context.Context, id, userID uint64, qty int) (*model.CartItem, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE cart_items SET quantity=? WHERE id=? AND user_id=?", qty, id, userID); err != nil {
		return nil, err
	}
	var it model.CartItem
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, product_id, quantity FROM cart_items WHERE id=? AND user_id=?",
		id, userID).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

// Delete removes one of the caller's items.
func (r *CartRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM cart_items WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Clear empties the caller's cart and reports how many rows went.
func (r *CartRepo) Clear(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCartItems(rows *sql.Rows) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
