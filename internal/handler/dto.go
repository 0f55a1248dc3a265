package handler

import (
    "time"

    "github.com/iliyamo/storefront-api/internal/model"
)

// Response shapes.  Money is rendered as a fixed two-decimal string.

type userResp struct {
    ID         uint64    `json:"id"`
    Username   string    `json:"username"`
    Email      string    `json:"email"`
    FullName   string    `json:"full_name"`
    Role       string    `json:"role"`
    IsVerified bool      `json:"is_verified"`
    CreatedAt  time.Time `json:"created_at"`
}

func toUserResp(u *model.User) userResp {
    return userResp{
        ID:         u.ID,
        Username:   u.Username,
        Email:      u.Email,
        FullName:   u.FullName,
        Role:       string(u.Role),
        IsVerified: u.IsVerified,
        CreatedAt:  u.CreatedAt,
    }
}

type productResp struct {
    ID          uint64    `json:"id"`
    Name        string    `json:"name"`
    Description string    `json:"description"`
    Price       string    `json:"price"`
    Stock       int       `json:"stock"`
    ImageURL    string    `json:"image_url"`
    SellerID    uint64    `json:"seller_id"`
    CreatedAt   time.Time `json:"created_at"`
}

func toProductResp(p *model.Product) productResp {
    return productResp{
        ID:          p.ID,
        Name:        p.Name,
        Description: p.Description,
        Price:       p.Price.StringFixed(2),
        Stock:       p.Stock,
        ImageURL:    p.ImageURL,
        SellerID:    p.SellerID,
        CreatedAt:   p.CreatedAt,
    }
}

type cartItemResp struct {
    ID        uint64 `json:"id"`
    ProductID uint64 `json:"product_id"`
    Quantity  int    `json:"quantity"`
}

func toCartItemResp(it *model.CartItem) cartItemResp {
    return cartItemResp{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
}

type orderItemResp struct {
    ID        uint64 `json:"id"`
    ProductID uint64 `json:"product_id"`
    Quantity  int    `json:"quantity"`
    UnitPrice string `json:"unit_price"`
    Subtotal  string `json:"subtotal"`
}

type transactionResp struct {
    ID        uint64    `json:"id"`
    Method    string    `json:"method"`
    Amount    string    `json:"amount"`
    Status    string    `json:"status"`
    CreatedAt time.Time `json:"created_at"`
}

type orderResp struct {
    ID          uint64           `json:"id"`
    UserID      uint64           `json:"user_id"`
    TotalAmount string           `json:"total_amount"`
    Status      string           `json:"status"`
    CreatedAt   time.Time        `json:"created_at"`
    Items       []orderItemResp  `json:"items"`
    Transaction *transactionResp `json:"transaction"`
}

func toOrderResp(o *model.Order) orderResp {
    out := orderResp{
        ID:          o.ID,
        UserID:      o.UserID,
        TotalAmount: o.TotalAmount.StringFixed(2),
        Status:      o.Status,
        CreatedAt:   o.CreatedAt,
        Items:       make([]orderItemResp, 0, len(o.Items)),
    }
    for _, it := range o.Items {
        out.Items = append(out.Items, orderItemResp{
            ID:        it.ID,
            ProductID: it.ProductID,
            Quantity:  it.Quantity,
            UnitPrice: it.UnitPrice.StringFixed(2),
            Subtotal:  it.Subtotal().StringFixed(2),
        })
    }
    if t := o.Transaction; t != nil {
        out.Transaction = &transactionResp{
            ID:        t.ID,
            Method:    t.Method,
            Amount:    t.Amount.StringFixed(2),
            Status:    t.Status,
            CreatedAt: t.CreatedAt,
        }
    }
    return out
}
