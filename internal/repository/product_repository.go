package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/model"
)

// ProductRepo handles CRUD and listing for the products table.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,COALESCE(description,''),price,stock,image_url,seller_id,created_at"

// Listing defaults and bounds.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// sortColumns whitelists the columns a listing may be ordered by.  Values
// are spliced into SQL so nothing outside this map may reach ORDER BY.
var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"created_at": "created_at",
}

// IsSortable reports whether key is an accepted sort_by value.
func IsSortable(key string) bool {
	_, ok := sortColumns[key]
	return ok
}

// ProductQuery describes a filtered, sorted and paginated product listing.
// Nil pointer filters are not applied.
type ProductQuery struct {
	SellerID *uint64
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	SortBy   string // one of the sortColumns keys; "" means id
	Desc     bool
	Page     int // 1-based
	Limit    int
}

// Normalize fills defaults and clamps Page/Limit.
func (q ProductQuery) Normalize() ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.SortBy == "" {
		q.SortBy = "id"
	}
	return q
}

// Offset is the row offset of the requested page.
func (q ProductQuery) Offset() int { return (q.Page - 1) * q.Limit }

// where builds the WHERE clause shared by the list and count queries.
func (q ProductQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.SellerID != nil {
		conds = append(conds, "seller_id = ?")
		args = append(args, *q.SellerID)
	}
	if q.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, q.MinPrice.StringFixed(2))
	}
	if q.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, q.MaxPrice.StringFixed(2))
	}
	if q.InStock {
		conds = append(conds, "stock > 0")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderBy returns the ORDER BY clause.  id is always the last key so equal
// sort values still page deterministically.
func (q ProductQuery) orderBy() string {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "id"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return " ORDER BY id " + dir
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir
}

// List returns one page of products plus the total number of matches.
func (r *ProductRepo) List(ctx context.Context, q ProductQuery) ([]model.Product, int64, error) {
	q = q.Normalize()
	where, args := q.where()

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sqlStr := "SELECT " + productColumns + " FROM products" + where + q.orderBy() + " LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, sqlStr, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListBySeller returns every product of a seller, or all products when
// sellerID is nil.  Used by the spreadsheet export.
func (r *ProductRepo) ListBySeller(ctx context.Context, sellerID *uint64) ([]model.Product, error) {
	sqlStr := "SELECT " + productColumns + " FROM products"
	var args []any
	if sellerID != nil {
		sqlStr += " WHERE seller_id = ?"
		args = append(args, *sellerID)
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Create inserts p and fills in its ID and CreatedAt.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO products (name, description, price, stock, image_url, seller_id) VALUES (?,?,?,?,?,?)",
		p.Name, p.Description, p.Price.StringFixed(2), p.Stock, p.ImageURL, p.SellerID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return r.DB.QueryRowContext(ctx, "SELECT created_at FROM products WHERE id=?", p.ID).Scan(&p.CreatedAt)
}

// GetByID fetches a single product.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id=?", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update writes the mutable columns of p.  The seller never changes.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE products SET name=?, description=?, price=?, stock=?, image_url=? WHERE id=?",
		p.Name, p.Description, p.Price.StringFixed(2), p.Stock, p.ImageURL, p.ID)
	if err != nil {
		return err
	}
	return r.ensureRow(ctx, res, p.ID)
}

// Delete removes a product.  Cart rows go with it; order history keeps its
// snapshot because order_items has no foreign key to products.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ensureRow distinguishes "no change" from "no row" after an UPDATE, since
// MySQL reports only changed rows as affected.
func (r *ProductRepo) ensureRow(ctx context.Context, res sql.Result, id uint64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM products WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*model.Product, error) {
	var p model.Product
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.SellerID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]model.Product, error) {
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
