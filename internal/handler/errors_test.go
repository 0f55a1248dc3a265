package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/storefront-api/internal/service"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{&service.ProductError{ProductID: 7, Err: service.ErrInsufficientStock}, http.StatusBadRequest, "insufficient_stock"},
		{&service.ProductError{ProductID: 7, Err: service.ErrProductNotFound}, http.StatusBadRequest, "product_not_found"},
		{fmt.Errorf("%w: name is required", service.ErrValidation), http.StatusBadRequest, "validation_error"},
		{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: product 3", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{service.ErrConflict, http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, respondError(c, zap.NewNop(), tc.err))
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
			var pe *service.ProductError
			if errors.As(tc.err, &pe) {
				assert.EqualValues(t, 7, body["product_id"])
			} else {
				assert.NotContains(t, body, "product_id")
			}
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/orders/1", nil), rec)

	require.NoError(t, respondError(c, zap.New(core), errors.New("dial tcp: connection refused")))
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "internal server error")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}

func TestValidatorUsesJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&registerReq{Username: "a", Email: "not-an-email", Password: "123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Contains(t, err.Error(), "email must be a valid email address")
	assert.Contains(t, err.Error(), "password must be at least 6")

	zero := 0
	err = v.Validate(&addCartReq{ProductID: 1, Quantity: &zero})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.NoError(t, v.Validate(&addCartReq{ProductID: 1}))
}

func TestParseProductQuery(t *testing.T) {
	e := echo.New()
	ctx := func(q string) echo.Context {
		return e.NewContext(httptest.NewRequest(http.MethodGet, "/products?"+q, nil), httptest.NewRecorder())
	}

	q, err := parseProductQuery(ctx("seller_id=4&min_price=1.5&max_price=9&in_stock=1&sort_by=price&order=DESC&page=3&limit=20"))
	require.NoError(t, err)
	require.NotNil(t, q.SellerID)
	assert.Equal(t, uint64(4), *q.SellerID)
	assert.Equal(t, "1.5", q.MinPrice.String())
	assert.Equal(t, "9", q.MaxPrice.String())
	assert.True(t, q.InStock)
	assert.Equal(t, "price", q.SortBy)
	assert.True(t, q.Desc)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 20, q.Limit)

	q, err = parseProductQuery(ctx(""))
	require.NoError(t, err)
	assert.Nil(t, q.SellerID)
	assert.False(t, q.Desc)
	assert.Zero(t, q.Page)

	_, err = parseProductQuery(ctx("seller_id=-1"))
	assert.ErrorIs(t, err, service.ErrValidation)
}
