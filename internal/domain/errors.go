package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFields     = errors.New("variant and quantity are required")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ErrorKind string

const (
	KindRequestShape      ErrorKind = "request_shape"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindPersistence       ErrorKind = "persistence"
)

// CheckoutError is the terminal Failed state of a checkout. Step is the last
// state reached before the failure.
type CheckoutError struct {
	Kind ErrorKind
	Step CheckoutState
	Err  error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed at %s (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// KindOf classifies err. Anything that is not a known domain failure is a
// persistence failure.
func KindOf(err error) ErrorKind {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidQuantity):
		return KindRequestShape
	case errors.Is(err, ErrVariantNotFound), errors.Is(err, ErrProductNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	default:
		return KindPersistence
	}
}
