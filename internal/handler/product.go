package handler

import (
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "go.uber.org/zap"

    "github.com/iliyamo/storefront-api/internal/repository"
    "github.com/iliyamo/storefront-api/internal/service"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
    Catalog *service.CatalogService
    Log     *zap.Logger
}

func NewProductHandler(cat *service.CatalogService, log *zap.Logger) *ProductHandler {
    return &ProductHandler{Catalog: cat, Log: log}
}

type createProductReq struct {
    Name        string           `json:"name" validate:"required,max=255"`
    Description string           `json:"description"`
    Price       *decimal.Decimal `json:"price" validate:"required"`
    Stock       int              `json:"stock" validate:"min=0"`
    ImageURL    string           `json:"image_url" validate:"max=255"`
}

type updateProductReq struct {
    Name        *string          `json:"name" validate:"omitempty,max=255"`
    Description *string          `json:"description"`
    Price       *decimal.Decimal `json:"price"`
    Stock       *int             `json:"stock" validate:"omitempty,min=0"`
    ImageURL    *string          `json:"image_url" validate:"omitempty,max=255"`
}

// Create: POST /products (seller|admin).
func (h *ProductHandler) Create(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req createProductReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    p, err := h.Catalog.Create(ctx, caller, service.ProductInput{
        Name:        req.Name,
        Description: req.Description,
        Price:       *req.Price,
        Stock:       req.Stock,
        ImageURL:    req.ImageURL,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message": "product created",
        "id":      p.ID,
        "product": toProductResp(p),
    })
}

// List: GET /products.  The body is a plain array; the total number of
// matches is in X-Total-Count.
func (h *ProductHandler) List(c echo.Context) error {
    q, err := parseProductQuery(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    products, total, err := h.Catalog.List(ctx, q)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    out := make([]productResp, 0, len(products))
    for i := range products {
        out = append(out, toProductResp(&products[i]))
    }
    q = q.Normalize()
    c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
    c.Response().Header().Set("X-Page", strconv.Itoa(q.Page))
    c.Response().Header().Set("X-Limit", strconv.Itoa(q.Limit))
    return c.JSON(http.StatusOK, out)
}

// Get: GET /products/:id.
func (h *ProductHandler) Get(c echo.Context) error {
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    p, err := h.Catalog.Get(ctx, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, toProductResp(p))
}

// Update: PUT /products/:id (owner or admin).
func (h *ProductHandler) Update(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    var req updateProductReq
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    p, err := h.Catalog.Update(ctx, caller, id, service.ProductPatch{
        Name:        req.Name,
        Description: req.Description,
        Price:       req.Price,
        Stock:       req.Stock,
        ImageURL:    req.ImageURL,
    })
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "product updated", "product": toProductResp(p)})
}

// Delete: DELETE /products/:id (owner or admin).
func (h *ProductHandler) Delete(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    id, err := parseIDParam(c, "id")
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    if err := h.Catalog.Delete(ctx, caller, id); err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "product deleted", "id": id})
}

// parseProductQuery turns query parameters into a ProductQuery.  Malformed
// values are validation errors; absent values keep their defaults.
func parseProductQuery(c echo.Context) (repository.ProductQuery, error) {
    var q repository.ProductQuery
    bad := func(name string) error {
        return fmt.Errorf("%w: invalid %s", service.ErrValidation, name)
    }

    if v := c.QueryParam("seller_id"); v != "" {
        id, err := strconv.ParseUint(v, 10, 64)
        if err != nil {
            return q, bad("seller_id")
        }
        q.SellerID = &id
    }
    if v := c.QueryParam("min_price"); v != "" {
        d, err := decimal.NewFromString(v)
        if err != nil {
            return q, bad("min_price")
        }
        q.MinPrice = &d
    }
    if v := c.QueryParam("max_price"); v != "" {
        d, err := decimal.NewFromString(v)
        if err != nil {
            return q, bad("max_price")
        }
        q.MaxPrice = &d
    }
    if v := c.QueryParam("in_stock"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil {
            return q, bad("in_stock")
        }
        q.InStock = b
    }
    if v := c.QueryParam("sort_by"); v != "" {
        if !repository.IsSortable(v) {
            return q, fmt.Errorf("%w: sort_by must be one of id, name, price, stock, created_at", service.ErrValidation)
        }
        q.SortBy = v
    }
    switch strings.ToLower(c.QueryParam("order")) {
    case "", "asc":
    case "desc":
        q.Desc = true
    default:
        return q, fmt.Errorf("%w: order must be asc or desc", service.ErrValidation)
    }
    if v := c.QueryParam("page"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 {
            return q, bad("page")
        }
        q.Page = n
    }
    if v := c.QueryParam("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 {
            return q, bad("limit")
        }
        q.Limit = n
    }
    return q, nil
}
