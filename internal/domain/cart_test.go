package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"items":[{"id":1,"product":{"id":7,"name":"Mug","price":10},"quantity":2,"subtotal":20}],"total":20}`))
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	item := snap.Items[0]
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, int64(7), item.Product.ID)
	assert.True(t, decimal.NewFromInt(20).Equal(snap.Total))
	assert.True(t, decimal.NewFromInt(30).Equal(item.SubtotalFor(3)))
}

func TestParseSnapshotEmptyCart(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"items":[],"total":0}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
}

func TestParseSnapshotRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `<html>`},
		{"items object", `{"items":{"id":1},"total":0}`},
		{"items missing", `{"total":0}`},
		{"items null", `{"items":null,"total":0}`},
		{"total string", `{"items":[],"total":"0"}`},
		{"total null", `{"items":[],"total":null}`},
		{"total missing", `{"items":[]}`},
		{"negative total", `{"items":[],"total":-5}`},
		{"total mismatch", `{"items":[{"id":1,"quantity":1,"subtotal":10}],"total":11}`},
		{"zero line id", `{"items":[{"id":0,"quantity":1,"subtotal":10}],"total":10}`},
		{"duplicate line id", `{"items":[{"id":1,"quantity":1,"subtotal":5},{"id":1,"quantity":1,"subtotal":5}],"total":10}`},
		{"zero quantity", `{"items":[{"id":1,"quantity":0,"subtotal":0}],"total":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestParseSnapshotRoundsTotalToCents(t *testing.T) {
	_, err := ParseSnapshot([]byte(`{"items":[{"id":1,"quantity":3,"subtotal":0.1},{"id":2,"quantity":1,"subtotal":0.2}],"total":0.3}`))
	assert.NoError(t, err)
}

func TestCartItemPrice(t *testing.T) {
	tests := []struct {
		name string
		item CartItem
		want decimal.Decimal
	}{
		{
			name: "explicit unit price wins",
			item: CartItem{
				Quantity:  2,
				Subtotal:  decimal.NewFromInt(20),
				UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(9)),
				Product:   ProductRef{Price: decimal.NewFromInt(10)},
			},
			want: decimal.NewFromInt(9),
		},
		{
			name: "product price",
			item: CartItem{Quantity: 2, Subtotal: decimal.NewFromInt(20), Product: ProductRef{Price: decimal.NewFromInt(10)}},
			want: decimal.NewFromInt(10),
		},
		{
			name: "derived from subtotal",
			item: CartItem{Quantity: 4, Subtotal: decimal.NewFromInt(20)},
			want: decimal.NewFromInt(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(tt.item.Price()), "got %s", tt.item.Price())
		})
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" blik ")
	require.NoError(t, err)
	assert.Equal(t, PaymentBlik, m)

	_, err = ParsePaymentMethod("CASH")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = ParsePaymentMethod("")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestShippingAddressID(t *testing.T) {
	id := int64(12)
	zero := int64(0)

	got, ok := User{AddressID: &id}.ShippingAddressID()
	assert.True(t, ok)
	assert.Equal(t, int64(12), got)

	_, ok = User{}.ShippingAddressID()
	assert.False(t, ok)

	_, ok = User{AddressID: &zero}.ShippingAddressID()
	assert.False(t, ok)
}

func TestPlaceholderCard(t *testing.T) {
	item := CartItem{ID: 3, Product: ProductRef{ID: 9, Name: "Lamp"}, Quantity: 1, Subtotal: decimal.NewFromInt(40)}
	card := PlaceholderCard(item, assert.AnError)

	assert.Equal(t, int64(3), card.LineID)
	assert.Empty(t, card.Name)
	assert.Empty(t, card.ImageURL)
	assert.Empty(t, card.Category)
	assert.Equal(t, assert.AnError.Error(), card.DetailError)
}
