package handler

import (
    "bytes"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/tealeg/xlsx"

    "github.com/iliyamo/storefront-api/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export: GET /products/export.  Sellers get their own products, admins
// get the whole catalog.
func (h *ProductHandler) Export(c echo.Context) error {
    caller, err := callerFrom(c)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    ctx, cancel := withTimeout(c)
    defer cancel()

    products, err := h.Catalog.Export(ctx, caller)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    file, err := buildProductWorkbook(products)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    // Render into a buffer first so a write failure can still become a
    // JSON error instead of a truncated download.
    var buf bytes.Buffer
    if err := file.Write(&buf); err != nil {
        return respondError(c, h.Log, err)
    }

    c.Response().Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
    c.Response().Header().Set("Content-Transfer-Encoding", "binary")
    c.Response().Header().Set("Expires", "0")
    return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

var exportHeaders = []string{"ID", "Name", "Description", "Price", "Stock", "ImageURL", "SellerID", "CreatedAt"}

func buildProductWorkbook(products []model.Product) (*xlsx.File, error) {
    file := xlsx.NewFile()
    sheet, err := file.AddSheet("Products")
    if err != nil {
        return nil, err
    }

    headerRow := sheet.AddRow()
    for _, h := range exportHeaders {
        headerRow.AddCell().SetValue(h)
    }

    for _, p := range products {
        row := sheet.AddRow()
        row.AddCell().SetValue(p.ID)
        row.AddCell().SetValue(p.Name)
        row.AddCell().SetValue(p.Description)
        row.AddCell().SetValue(p.Price.StringFixed(2))
        row.AddCell().SetValue(p.Stock)
        row.AddCell().SetValue(p.ImageURL)
        row.AddCell().SetValue(p.SellerID)
        row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
    }
    return file, nil
}
