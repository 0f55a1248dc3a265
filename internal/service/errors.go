package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Services wrap these with fmt.Errorf("%w: ...") and the HTTP
// layer maps them to status codes with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthenticated   = errors.New("authentication failed")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
)

// ProductError names the product that made a checkout fail.  It unwraps to
// ErrInsufficientStock or ErrProductNotFound.
type ProductError struct {
	ProductID uint64
	Name      string
	Err       error
}

func (e *ProductError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s for product %q (id %d)", e.Err, e.Name, e.ProductID)
	}
	return fmt.Sprintf("%s (id %d)", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
