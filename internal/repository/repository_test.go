package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-api/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestDuplicateKey(t *testing.T) {
	key, ok := duplicateKey(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.uq_users_email'"})
	assert.True(t, ok)
	assert.Equal(t, "uq_users_email", key)

	_, ok = duplicateKey(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	assert.False(t, ok)
	_, ok = duplicateKey(errors.New("Duplicate entry"))
	assert.False(t, ok)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestUserCreateMapsDuplicates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	insert := q("INSERT INTO users (username, email, password_hash, full_name, role) VALUES (?,?,?,?,?)")

	mock.ExpectExec(insert).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.uq_users_email'"})
	err := repo.Create(context.Background(), &model.User{Username: "a", Email: "A@B.c", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)

	mock.ExpectExec(insert).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'users.uq_users_username'"})
	err = repo.Create(context.Background(), &model.User{Username: "a", Email: "x@b.c", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrUsernameExists)

	now := time.Now().UTC()
	mock.ExpectExec(insert).
		WithArgs("bob", "bob@example.com", "hash", "Bob", "seller").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(q("SELECT created_at FROM users WHERE id=?")).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	u := &model.User{Username: "bob", Email: " Bob@Example.com ", PasswordHash: "hash", FullName: "Bob", Role: model.RoleSeller}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, uint64(42), u.ID)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, now, u.CreatedAt)
}

func TestUserGetByUsernameNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM users WHERE username=?")).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err := NewUserRepo(db).GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMarkVerifiedMissingUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE users SET is_verified=1 WHERE id=?")).WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM users WHERE id=?")).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, NewUserRepo(db).MarkVerified(context.Background(), 9), ErrUserNotFound)
}

func TestTokenValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery("SELECT user_id FROM refresh_tokens .+ revoked_at IS NULL AND expires_at > UTC_TIMESTAMP").
		WithArgs("h").WillReturnError(sql.ErrNoRows)
	_, err := repo.ValidateRefresh(context.Background(), "h")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").WithArgs("ok").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(3))
	uid, err := repo.ValidateRefresh(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), uid)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.RevokeByHash(context.Background(), "h"), ErrInvalidRefresh)
}

func TestProductListQueryShape(t *testing.T) {
	db, mock := newMock(t)
	seller := uint64(3)
	min := decimal.RequireFromString("5")
	query := ProductQuery{SellerID: &seller, MinPrice: &min, InStock: true, SortBy: "price", Desc: true, Page: 2, Limit: 500}

	mock.ExpectQuery(q("SELECT COUNT(*) FROM products WHERE seller_id = ? AND price >= ? AND stock > 0")).
		WithArgs(seller, "5.00").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
	mock.ExpectQuery(q("FROM products WHERE seller_id = ? AND price >= ? AND stock > 0 ORDER BY price DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(seller, "5.00", MaxPageLimit, MaxPageLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "image_url", "seller_id", "created_at"}).
			AddRow(1, "Lamp", "", "9.90", 4, "", 3, time.Now()))

	out, total, err := NewProductRepo(db).List(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int64(120), total)
	require.Len(t, out, 1)
	assert.Equal(t, "9.90", out[0].Price.StringFixed(2))
}

func TestProductQueryDefaults(t *testing.T) {
	n := ProductQuery{}.Normalize()
	assert.Equal(t, 1, n.Page)
	assert.Equal(t, DefaultPageLimit, n.Limit)
	assert.Equal(t, 0, n.Offset())
	assert.Equal(t, " ORDER BY id ASC", n.orderBy())

	where, args := n.where()
	assert.Empty(t, where)
	assert.Empty(t, args)

	assert.True(t, IsSortable("created_at"))
	assert.False(t, IsSortable("price; DROP TABLE products"))
}

func TestProductUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE products SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM products WHERE id=?")).WithArgs(uint64(8)).WillReturnError(sql.ErrNoRows)
	err := NewProductRepo(db).Update(context.Background(), &model.Product{ID: 8, Name: "x", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartAddUpserts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO cart_items .+ ON DUPLICATE KEY UPDATE quantity = quantity \\+ VALUES\\(quantity\\)").
		WithArgs(uint64(1), uint64(2), 3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(q("SELECT id, user_id, product_id, quantity FROM cart_items WHERE user_id=? AND product_id=?")).
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "quantity"}).AddRow(11, 1, 2, 5))

	it, err := NewCartRepo(db).Add(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), it.ID)
	assert.Equal(t, 5, it.Quantity)
}

func TestCartDeleteForeignItem(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM cart_items WHERE id=? AND user_id=?")).WithArgs(uint64(4), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, NewCartRepo(db).Delete(context.Background(), 4, 9), ErrCartItemNotFound)
}

func TestInTxCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?")).
		WithArgs(2, uint64(7), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE orders SET total_amount=? WHERE id=?")).
		WithArgs("21.69", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewOrderRepo(db).InTx(context.Background(), func(tx CheckoutTx) error {
		if err := tx.DecrementStock(context.Background(), 7, 2); err != nil {
			return err
		}
		return tx.SetOrderTotal(context.Background(), 1, decimal.RequireFromString("21.69"))
	})
	assert.NoError(t, err)
}

func TestInTxRollsBackOnStockConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE products SET stock = stock - ?")).
		WithArgs(5, uint64(7), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewOrderRepo(db).InTx(context.Background(), func(tx CheckoutTx) error {
		return tx.DecrementStock(context.Background(), 7, 5)
	})
	assert.ErrorIs(t, err, ErrStockConflict)
}

func TestLockProductsOrdersByID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM products WHERE id IN (?,?) ORDER BY id FOR UPDATE")).
		WithArgs(uint64(9), uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "image_url", "seller_id", "created_at"}).
			AddRow(4, "a", "", "1.00", 1, "", 1, time.Now()).
			AddRow(9, "b", "", "2.00", 2, "", 1, time.Now()))
	mock.ExpectRollback()

	sentinel := errors.New("stop")
	err := NewOrderRepo(db).InTx(context.Background(), func(tx CheckoutTx) error {
		m, err := tx.LockProducts(context.Background(), []uint64{9, 4})
		require.NoError(t, err)
		assert.Len(t, m, 2)
		assert.Equal(t, "b", m[9].Name)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestOrderGetForUserAttaches(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q("FROM orders WHERE id=? AND user_id=?")).WithArgs(uint64(5), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total_amount", "status", "created_at"}).
			AddRow(5, 2, "20.00", "pending", now))
	mock.ExpectQuery(q("FROM order_items WHERE order_id IN (?) ORDER BY order_id, id")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "unit_price"}).
			AddRow(1, 5, 7, 2, "10.00"))
	mock.ExpectQuery(q("FROM transactions WHERE order_id IN (?)")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "method", "amount", "status", "created_at"}).
			AddRow(3, 5, "bank_transfer", "20.00", "pending", now))

	o, err := NewOrderRepo(db).GetForUser(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "10.00", o.Items[0].UnitPrice.StringFixed(2))
	require.NotNil(t, o.Transaction)
	assert.Equal(t, "bank_transfer", o.Transaction.Method)

	mock.ExpectQuery(q("FROM orders WHERE id=? AND user_id=?")).WithArgs(uint64(5), uint64(3)).
		WillReturnError(sql.ErrNoRows)
	_, err = NewOrderRepo(db).GetForUser(context.Background(), 5, 3)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderSwapStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepo(db)
	swap := q("UPDATE orders SET status=? WHERE id=? AND status=?")

	mock.ExpectExec(swap).WithArgs("paid", uint64(5), "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SwapStatus(context.Background(), 5, "pending", "paid"))

	mock.ExpectExec(swap).WithArgs("paid", uint64(5), "pending").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM orders WHERE id=?")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.ErrorIs(t, repo.SwapStatus(context.Background(), 5, "pending", "paid"), ErrStatusChanged)

	mock.ExpectExec(swap).WithArgs("paid", uint64(9), "pending").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM orders WHERE id=?")).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.SwapStatus(context.Background(), 9, "pending", "paid"), ErrOrderNotFound)
}
