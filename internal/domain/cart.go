package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedSnapshot marks a cart payload the client refuses to adopt.
var ErrMalformedSnapshot = errors.New("malformed cart payload")

type ProductImage struct {
	URL string `json:"url"`
}

// ProductRef is the product as embedded in a cart line.
type ProductRef struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Images []ProductImage  `json:"images,omitempty"`
}

// CartItem is one server-authoritative cart line. ID identifies the line,
// not the product.
type CartItem struct {
	ID        int64               `json:"id"`
	Product   ProductRef          `json:"product"`
	Quantity  int                 `json:"quantity"`
	Subtotal  decimal.Decimal     `json:"subtotal"`
	UnitPrice decimal.NullDecimal `json:"unitprice"`
}

// Price returns the per-unit price of the line: the explicit unit price when
// the server sent one, else the product price, else subtotal / quantity.
func (i CartItem) Price() decimal.Decimal {
	if i.UnitPrice.Valid {
		return i.UnitPrice.Decimal
	}
	if !i.Product.Price.IsZero() {
		return i.Product.Price
	}
	if i.Quantity > 0 {
		return i.Subtotal.Div(decimal.NewFromInt(int64(i.Quantity)))
	}
	return decimal.Zero
}

// SubtotalFor is the line subtotal at the given quantity.
func (i CartItem) SubtotalFor(qty int) decimal.Decimal {
	return i.Price().Mul(decimal.NewFromInt(int64(qty)))
}

// Snapshot is the cart as returned by GET /cart.
type Snapshot struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type rawSnapshot struct {
	Items json.RawMessage `json:"items"`
	Total json.RawMessage `json:"total"`
}

// ParseSnapshot decodes and validates a cart payload. Items must be a JSON
// array and total a non-negative JSON number equal to the sum of subtotals.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	items := bytes.TrimSpace(raw.Items)
	if len(items) == 0 || items[0] != '[' {
		return nil, fmt.Errorf("%w: items is not an array", ErrMalformedSnapshot)
	}
	total := bytes.TrimSpace(raw.Total)
	if len(total) == 0 || total[0] == '"' || bytes.Equal(total, []byte("null")) {
		return nil, fmt.Errorf("%w: total is not a number", ErrMalformedSnapshot)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(items, &snap.Items); err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrMalformedSnapshot, err)
	}
	t, err := decimal.NewFromString(string(total))
	if err != nil {
		return nil, fmt.Errorf("%w: total is not a number", ErrMalformedSnapshot)
	}
	snap.Total = t

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Snapshot) Validate() error {
	if s.Total.IsNegative() {
		return fmt.Errorf("%w: negative total %s", ErrMalformedSnapshot, s.Total)
	}

	seen := make(map[int64]struct{}, len(s.Items))
	sum := decimal.Zero
	for _, item := range s.Items {
		if item.ID <= 0 {
			return fmt.Errorf("%w: line id %d", ErrMalformedSnapshot, item.ID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate line id %d", ErrMalformedSnapshot, item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: line %d has quantity %d", ErrMalformedSnapshot, item.ID, item.Quantity)
		}
		if item.Subtotal.IsNegative() {
			return fmt.Errorf("%w: line %d has negative subtotal", ErrMalformedSnapshot, item.ID)
		}
		sum = sum.Add(item.Subtotal)
	}

	if !sum.Round(2).Equal(s.Total.Round(2)) {
		return fmt.Errorf("%w: total %s does not match subtotals %s", ErrMalformedSnapshot, s.Total, sum)
	}
	return nil
}
