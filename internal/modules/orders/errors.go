package orders

import "errors"

var (
	ErrCartEmpty         = errors.New("cart is empty")
	ErrInvalidItem       = errors.New("invalid cart item")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotActionable     = errors.New("order not actionable")
)
