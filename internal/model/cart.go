package model

// CartItem is one (product, quantity) pair in a user's cart.  There is at
// most one row per (UserID, ProductID); adding the same product again
// increments Quantity.
type CartItem struct {
    ID        uint64 // cart_items.id
    UserID    uint64 // cart_items.user_id
    ProductID uint64 // cart_items.product_id
    Quantity  int    // cart_items.quantity
}
