package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Product is a catalog entry owned by a seller.  Price is stored as
// DECIMAL(12,2) and Stock never goes below zero.
type Product struct {
    ID          uint64          // products.id
    Name        string          // products.name
    Description string          // products.description
    Price       decimal.Decimal // products.price
    Stock       int             // products.stock
    ImageURL    string          // products.image_url
    SellerID    uint64          // products.seller_id
    CreatedAt   time.Time       // products.created_at
}
