// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the notification consumer.
package queue

// Routing keys.  Every event is published to the topic exchange under its
// name.
const (
    EventOrderPlaced        = "order.placed"
    EventOrderStatusChanged = "order.status_changed"
    EventUserRegistered     = "user.registered"
)

// OrderPlacedEvent is published after a checkout commits.  Money is carried
// as a fixed two-decimal string.
type OrderPlacedEvent struct {
    OrderID       uint64 `json:"order_id"`
    UserID        uint64 `json:"user_id"`
    TotalAmount   string `json:"total_amount"`
    ItemCount     int    `json:"item_count"`
    PaymentMethod string `json:"payment_method"`
    PlacedAt      string `json:"placed_at"`
}

// OrderStatusChangedEvent is published after an order's status is updated.
type OrderStatusChangedEvent struct {
    OrderID   uint64 `json:"order_id"`
    UserID    uint64 `json:"user_id"`
    From      string `json:"from"`
    To        string `json:"to"`
    ChangedAt string `json:"changed_at"`
}

// UserRegisteredEvent carries the email verification token to the
// notification consumer, which stands in for an email sender.
type UserRegisteredEvent struct {
    UserID            uint64 `json:"user_id"`
    Username          string `json:"username"`
    Email             string `json:"email"`
    VerificationToken string `json:"verification_token"`
    RegisteredAt      string `json:"registered_at"`
}
