package checkout

import "errors"

type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusSubmitting Status = "SUBMITTING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrNoPaymentMethod   = errors.New("no payment method selected")
	ErrNotAuthenticated  = errors.New("user not authenticated")
	ErrNoShippingAddress = errors.New("user has no shipping address")
	ErrOrderInFlight     = errors.New("order is already being placed")
	ErrClosed            = errors.New("checkout closed")
)
