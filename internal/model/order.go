package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Order statuses.  The column is an open string enum; these are the
// states the transition table knows about.
const (
    OrderStatusPending   = "pending"
    OrderStatusPaid      = "paid"
    OrderStatusShipped   = "shipped"
    OrderStatusDelivered = "delivered"
    OrderStatusCancelled = "cancelled"
)

// TransactionStatusPending is the only status checkout ever writes.
const TransactionStatusPending = "pending"

// Order is the immutable result of a checkout.  TotalAmount equals the
// sum of Quantity*UnitPrice over Items and is fixed at creation; only
// Status changes afterwards.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – buyer.
//  TotalAmount – derived order total.
//  Status      – pending, paid, shipped, ...
//  CreatedAt   – creation timestamp.
//  Items       – line items (loaded on read).
//  Transaction – the payment-intent record (loaded on read).
type Order struct {
    ID          uint64          // orders.id
    UserID      uint64          // orders.user_id
    TotalAmount decimal.Decimal // orders.total_amount
    Status      string          // orders.status
    CreatedAt   time.Time       // orders.created_at
    Items       []OrderItem
    Transaction *Transaction
}

// OrderItem records a purchased quantity and the unit price captured at
// the time of purchase.  It is never re-priced from the product.
type OrderItem struct {
    ID        uint64          // order_items.id
    OrderID   uint64          // order_items.order_id
    ProductID uint64          // order_items.product_id
    Quantity  int             // order_items.quantity
    UnitPrice decimal.Decimal // order_items.unit_price
}

// Subtotal returns Quantity * UnitPrice.
func (i OrderItem) Subtotal() decimal.Decimal {
    return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction is the local payment ledger row for an order (one per
// order).  It is not a gateway charge.
type Transaction struct {
    ID        uint64          // transactions.id
    OrderID   uint64          // transactions.order_id
    Method    string          // transactions.method
    Amount    decimal.Decimal // transactions.amount
    Status    string          // transactions.status
    CreatedAt time.Time       // transactions.created_at
}
