package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/service"
)

// CartHandler serves the caller's cart.  Every route sits behind JWTAuth.
type CartHandler struct {
    Cart *service.CartService
    Log  *zap.Logger
}

func NewCartHandler(cart *service.CartService, log *zap.Logger) *CartHandler {
    return &CartHandler{Cart: cart, Log: log}
}

type addCartReq struct {
    ProductID uint64 `json:"product_id" validate:"required"`
    // Quantity defaults to 1 when omitted; an explicit 0 is rejected.
    Quantity *int `json:"quantity" validate:"omitempty,gt=0,max=10000"`
}

type updateCartReq struct {
    Quantity int `json:"quantity" validate:"gt=0,max=10000"`
}

// Add: POST /cart.
func (h *CartHandler) Add(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req addCartReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    qty := 1
    if req.Quantity != nil {
        qty = *req.Quantity
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    it, err := h.Cart.Add(ctx, uid, req.ProductID, qty)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message": "item added to cart",
        "item_id": it.ID,
        "item":    toCartItemResp(it),
    })
}

// List: GET /cart.
func (h *CartHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    items, err := h.Cart.List(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    out := make([]cartItemResp, 0, len(items))
    for i := range items {
        out = append(out, toCartItemResp(&items[i]))
    }
    return c.JSON(http.StatusOK, out)
}

// Update: PATCH /cart/:id.
func (h *CartHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req updateCartReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    it, err := h.Cart.UpdateQuantity(ctx, uid, id, req.Quantity)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "cart item updated", "item": toCartItemResp(it)})
}

// Remove: DELETE /cart/:id.
func (h *CartHandler) Remove(c echo.Context) error {
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

    if err := h.Cart.Remove(ctx, uid, id); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "item removed from cart"})
}

// Clear: DELETE /cart.
func (h *CartHandler) Clear(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    n, err := h.Cart.Clear(ctx, uid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "cart cleared", "removed": n})
}
