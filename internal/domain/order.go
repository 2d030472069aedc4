package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "CARD"
	PaymentBlik           PaymentMethod = "BLIK"
	PaymentPaypal         PaymentMethod = "PAYPAL"
	PaymentPaypo          PaymentMethod = "PAYPO"
	PaymentGooglePay      PaymentMethod = "GOOGLE_PAY"
	PaymentApplePay       PaymentMethod = "APPLE_PAY"
	PaymentOnlineTransfer PaymentMethod = "ONLINE_TRANSFER"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCard,
	PaymentBlik,
	PaymentPaypal,
	PaymentPaypo,
	PaymentGooglePay,
	PaymentApplePay,
	PaymentOnlineTransfer,
}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
	return m, nil
}

type OrderRequest struct {
	PaymentMethod     PaymentMethod `json:"payment_method"`
	ShippingAddressID int64         `json:"shipping_address_id"`
}

// Order is the server's answer to POST /orders. The API may answer with an
// empty body, so every field is optional.
type Order struct {
	ID            int64           `json:"id,omitempty"`
	Status        string          `json:"status,omitempty"`
	Total         decimal.Decimal `json:"total,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}
