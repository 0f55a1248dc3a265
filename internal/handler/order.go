package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/service"
)

// OrderHandler serves checkout and order history.
type OrderHandler struct {
    Orders *service.OrderService
    Log    *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, log *zap.Logger) *OrderHandler {
    return &OrderHandler{Orders: orders, Log: log}
}

type checkoutReq struct {
    PaymentMethod string `json:"payment_method" validate:"max=50"`
}

type statusReq struct {
    Status string `json:"status" validate:"required,max=50"`
}

// Checkout: POST /orders/checkout.  The body is optional.
func (h *OrderHandler) Checkout(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req checkoutReq
    if c.Request().ContentLength != 0 {
        if err := bindAndValidate(c, &req); err != nil {
            return respondError(c, h.Log, err)
        }
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    o, err := h.Orders.Checkout(ctx, uid, req.PaymentMethod)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":  "order placed",
        "order_id": o.ID,
        "order":    toOrderResp(o),
    })
}

// ListMine: GET /orders/me.
func (h *OrderHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    orders, err := h.Orders.ListOrders(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    out := make([]orderResp, 0, len(orders))
    for i := range orders {
        out = append(out, toOrderResp(&orders[i]))
    }
    return c.JSON(http.StatusOK, out)
}

// Get: GET /orders/:id, scoped to the caller.
func (h *OrderHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    o, err := h.Orders.GetOrder(ctx, uid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toOrderResp(o))
}

// UpdateStatus: PATCH /orders/:id (admin|seller).
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req statusReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    o, err := h.Orders.SetOrderStatus(ctx, caller, id, req.Status)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "order status updated", "order": toOrderResp(o)})
}
