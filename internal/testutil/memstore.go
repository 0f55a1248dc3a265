// Package testutil provides an in-memory implementation of the service
// store interfaces.  It mirrors the MySQL repositories closely enough for
// service tests: unique keys, caller scoping, ordering and rollback of a
// failed checkout transaction.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

type refreshRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type state struct {
	seq      uint64
	users    map[uint64]model.User
	tokens   map[string]refreshRow
	products map[uint64]model.Product
	cart     map[uint64]model.CartItem
	orders   map[uint64]model.Order
	items    map[uint64]model.OrderItem
	txns     map[uint64]model.Transaction
}

func (s *state) clone() *state {
	c := &state{
		seq:      s.seq,
		users:    make(map[uint64]model.User, len(s.users)),
		tokens:   make(map[string]refreshRow, len(s.tokens)),
		products: make(map[uint64]model.Product, len(s.products)),
		cart:     make(map[uint64]model.CartItem, len(s.cart)),
		orders:   make(map[uint64]model.Order, len(s.orders)),
		items:    make(map[uint64]model.OrderItem, len(s.items)),
		txns:     make(map[uint64]model.Transaction, len(s.txns)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.txns {
		c.txns[k] = v
	}
	return c
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// Store is a goroutine-safe in-memory database.  The zero value is not
// usable; call NewStore.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// FailOn, when set, is consulted before every checkout statement with
	// the statement name; a non-nil result is returned from that step.
	FailOn func(step string) error
}

func NewStore() *Store {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	return &Store{
		st: &state{
			users:    map[uint64]model.User{},
			tokens:   map[string]refreshRow{},
			products: map[uint64]model.Product{},
			cart:     map[uint64]model.CartItem{},
			orders:   map[uint64]model.Order{},
			items:    map[uint64]model.OrderItem{},
			txns:     map[uint64]model.Transaction{},
		},
		// strictly increasing so "newest first" is deterministic
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
}

// Counts reports the number of orders, order items and transactions.
func (s *Store) Counts() (orders, items, txns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders), len(s.st.items), len(s.st.txns)
}

// SeedProduct inserts a product directly and returns it.
func (s *Store) SeedProduct(sellerID uint64, name string, price string, stock int) model.Product {
	p := model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, SellerID: sellerID}
	_ = s.Products().Create(context.Background(), &p)
	return p
}

// DropProduct removes a product row but leaves cart rows pointing at it,
// as if it vanished between add-to-cart and checkout.
func (s *Store) DropProduct(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.products, id)
}

// Stock returns the current stock of a product, or -1 when missing.
func (s *Store) Stock(id uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok {
		return -1
	}
	return p.Stock
}

// ---- users ----

type Users struct{ s *Store }

func (s *Store) Users() *Users { return &Users{s} }

func (u *Users) Create(_ context.Context, in *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	for _, x := range s.st.users {
		if x.Username == in.Username {
			return repository.ErrUsernameExists
		}
		if x.Email == in.Email {
			return repository.ErrEmailExists
		}
	}
	in.ID = s.st.next()
	in.CreatedAt = s.now()
	s.st.users[in.ID] = *in
	return nil
}

func (u *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, x := range u.s.st.users {
		if x.Username == username {
			return &x, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	x, ok := u.s.st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &x, nil
}

func (u *Users) MarkVerified(_ context.Context, id uint64) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	x, ok := u.s.st.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	x.IsVerified = true
	u.s.st.users[id] = x
	return nil
}

// ---- refresh tokens ----

type Tokens struct{ s *Store }

func (s *Store) Tokens() *Tokens { return &Tokens{s} }

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.st.tokens[hash] = refreshRow{userID: userID, exp: exp}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.st.tokens[hash]
	if !ok || r.revoked || time.Now().UTC().After(r.exp) {
		return 0, repository.ErrInvalidRefresh
	}
	return r.userID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, hash string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.st.tokens[hash]
	if !ok || r.revoked {
		return repository.ErrInvalidRefresh
	}
	r.revoked = true
	t.s.st.tokens[hash] = r
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for h, r := range t.s.st.tokens {
		if r.userID == userID {
			r.revoked = true
			t.s.st.tokens[h] = r
		}
	}
	return nil
}

// ---- products ----

type Products struct{ s *Store }

func (s *Store) Products() *Products { return &Products{s} }

func (p *Products) Create(_ context.Context, in *model.Product) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	in.ID = p.s.st.next()
	in.CreatedAt = p.s.now()
	p.s.st.products[in.ID] = *in
	return nil
}

func (p *Products) GetByID(_ context.Context, id uint64) (*model.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	x, ok := p.s.st.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &x, nil
}

func (p *Products) List(_ context.Context, q repository.ProductQuery) ([]model.Product, int64, error) {
	q = q.Normalize()
	p.s.mu.Lock()
	var all []model.Product
	for _, x := range p.s.st.products {
		if q.SellerID != nil && x.SellerID != *q.SellerID {
			continue
		}
		if q.MinPrice != nil && x.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && x.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		if q.InStock && x.Stock <= 0 {
			continue
		}
		all = append(all, x)
	}
	p.s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		c := compareBy(q.SortBy, a, b)
		if c == 0 {
			c = compareUint(a.ID, b.ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]model.Product{}, all[start:end]...), total, nil
}

func compareBy(key string, a, b model.Product) int {
	switch key {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "price":
		return a.Price.Cmp(b.Price)
	case "stock":
		return a.Stock - b.Stock
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return compareUint(a.ID, b.ID)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (p *Products) ListBySeller(_ context.Context, sellerID *uint64) ([]model.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := []model.Product{}
	for _, x := range p.s.st.products {
		if sellerID == nil || x.SellerID == *sellerID {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Products) Update(_ context.Context, in *model.Product) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	x, ok := p.s.st.products[in.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	x.Name, x.Description, x.Price, x.Stock, x.ImageURL = in.Name, in.Description, in.Price, in.Stock, in.ImageURL
	p.s.st.products[in.ID] = x
	return nil
}

func (p *Products) Delete(_ context.Context, id uint64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.st.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(p.s.st.products, id)
	for cid, it := range p.s.st.cart {
		if it.ProductID == id {
			delete(p.s.st.cart, cid)
		}
	}
	return nil
}

// ---- cart ----

type Carts struct{ s *Store }

func (s *Store) Carts() *Carts { return &Carts{s} }

func (c *Carts) Add(_ context.Context, userID, productID uint64, qty int) (*model.CartItem, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for id, it := range c.s.st.cart {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity += qty
			c.s.st.cart[id] = it
			return &it, nil
		}
	}
	it := model.CartItem{ID: c.s.st.next(), UserID: userID, ProductID: productID, Quantity: qty}
	c.s.st.cart[it.ID] = it
	return &it, nil
}

func (c *Carts) ListByUser(_ context.Context, userID uint64) ([]model.CartItem, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.st.cartOf(userID), nil
}

func (s *state) cartOf(userID uint64) []model.CartItem {
	out := []model.CartItem{}
	for _, it := range s.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Carts) UpdateQuantity(_ context.Context, id, userID uint64, qty int) (*model.CartItem, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	it, ok := c.s.st.cart[id]
	if !ok || it.UserID != userID {
		return nil, repository.ErrCartItemNotFound
	}
	it.Quantity = qty
	c.s.st.cart[id] = it
	return &it, nil
}

func (c *Carts) Delete(_ context.Context, id, userID uint64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	it, ok := c.s.st.cart[id]
	if !ok || it.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	delete(c.s.st.cart, id)
	return nil
}

func (c *Carts) Clear(_ context.Context, userID uint64) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.st.clearCart(userID), nil
}

func (s *state) clearCart(userID uint64) int64 {
	var n int64
	for id, it := range s.cart {
		if it.UserID == userID {
			delete(s.cart, id)
			n++
		}
	}
	return n
}

// ---- orders ----

type Orders struct{ s *Store }

func (s *Store) Orders() *Orders { return &Orders{s} }

// InTx holds the store lock for the whole closure and restores the
// pre-transaction state when fn fails.
func (o *Orders) InTx(ctx context.Context, fn func(tx repository.CheckoutTx) error) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	snapshot := o.s.st.clone()
	if err := fn(&memTx{s: o.s}); err != nil {
		o.s.st = snapshot
		return err
	}
	return nil
}

func (o *Orders) ListByUser(_ context.Context, userID uint64) ([]model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := []model.Order{}
	for _, x := range o.s.st.orders {
		if x.UserID == userID {
			out = append(out, o.s.st.hydrate(x))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (o *Orders) GetForUser(_ context.Context, id, userID uint64) (*model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	x, ok := o.s.st.orders[id]
	if !ok || x.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	h := o.s.st.hydrate(x)
	return &h, nil
}

func (o *Orders) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	x, ok := o.s.st.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	h := o.s.st.hydrate(x)
	return &h, nil
}

func (o *Orders) UpdateStatus(_ context.Context, id uint64, status string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	x, ok := o.s.st.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	x.Status = status
	o.s.st.orders[id] = x
	return nil
}

func (o *Orders) SwapStatus(_ context.Context, id uint64, from, to string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	x, ok := o.s.st.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if x.Status != from {
		return repository.ErrStatusChanged
	}
	x.Status = to
	o.s.st.orders[id] = x
	return nil
}

func (s *state) hydrate(o model.Order) model.Order {
	o.Items = []model.OrderItem{}
	for _, it := range s.items {
		if it.OrderID == o.ID {
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	o.Transaction = nil
	for _, t := range s.txns {
		if t.OrderID == o.ID {
			t := t
			o.Transaction = &t
		}
	}
	return o
}

// memTx runs under the lock already held by InTx.
type memTx struct{ s *Store }

func (m *memTx) fail(step string) error {
	if m.s.FailOn == nil {
		return nil
	}
	return m.s.FailOn(step)
}

func (m *memTx) CartItems(_ context.Context, userID uint64) ([]model.CartItem, error) {
	if err := m.fail("CartItems"); err != nil {
		return nil, err
	}
	return m.s.st.cartOf(userID), nil
}

func (m *memTx) LockProducts(_ context.Context, ids []uint64) (map[uint64]*model.Product, error) {
	if err := m.fail("LockProducts"); err != nil {
		return nil, err
	}
	out := make(map[uint64]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.s.st.products[id]; ok {
			p := p
			out[id] = &p
		}
	}
	return out, nil
}

func (m *memTx) CreateOrder(_ context.Context, o *model.Order) error {
	if err := m.fail("CreateOrder"); err != nil {
		return err
	}
	o.ID = m.s.st.next()
	o.CreatedAt = m.s.now()
	stored := *o
	stored.Items, stored.Transaction = nil, nil
	m.s.st.orders[o.ID] = stored
	return nil
}

func (m *memTx) DecrementStock(_ context.Context, productID uint64, qty int) error {
	if err := m.fail("DecrementStock"); err != nil {
		return err
	}
	p, ok := m.s.st.products[productID]
	if !ok || p.Stock < qty {
		return repository.ErrStockConflict
	}
	p.Stock -= qty
	m.s.st.products[productID] = p
	return nil
}

func (m *memTx) CreateOrderItem(_ context.Context, it *model.OrderItem) error {
	if err := m.fail("CreateOrderItem"); err != nil {
		return err
	}
	it.ID = m.s.st.next()
	m.s.st.items[it.ID] = *it
	return nil
}

func (m *memTx) SetOrderTotal(_ context.Context, orderID uint64, total decimal.Decimal) error {
	if err := m.fail("SetOrderTotal"); err != nil {
		return err
	}
	o := m.s.st.orders[orderID]
	o.TotalAmount = total
	m.s.st.orders[orderID] = o
	return nil
}

func (m *memTx) ClearCart(_ context.Context, userID uint64) (int64, error) {
	if err := m.fail("ClearCart"); err != nil {
		return 0, err
	}
	return m.s.st.clearCart(userID), nil
}

func (m *memTx) CreateTransaction(_ context.Context, t *model.Transaction) error {
	if err := m.fail("CreateTransaction"); err != nil {
		return err
	}
	t.ID = m.s.st.next()
	t.CreatedAt = m.s.now()
	m.s.st.txns[t.ID] = *t
	return nil
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	Names  []string
	Events []any
	Err    error
}

func (e *Events) Publish(_ context.Context, name string, ev any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Names = append(e.Names, name)
	e.Events = append(e.Events, ev)
	return e.Err
}

// Purges records cache purges.
type Purges struct {
	mu         sync.Mutex
	Namespaces []string
}

func (p *Purges) Purge(_ context.Context, ns string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Namespaces = append(p.Namespaces, ns)
	return nil
}
