package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder(Buy, " xyz ", 10, dec("55.5"))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID())
	assert.Equal(t, Buy, o.Side())
	assert.Equal(t, "XYZ", o.Symbol())
	assert.Equal(t, int64(10), o.Quantity())
	assert.Equal(t, int64(10), o.OriginalQty())
	assert.Equal(t, "55.500", o.Price().String())
	assert.Equal(t, uint64(0), o.Seq())
	assert.Equal(t, StatusOpen, o.Status())

	other, err := NewOrder(Buy, "XYZ", 10, dec("55.5"))
	require.NoError(t, err)
	assert.NotEqual(t, o.ID(), other.ID())
}

func TestNewOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		side   Side
		symbol string
		qty    int64
		price  string
	}{
		{"unknown side", Side(7), "XYZ", 1, "1"},
		{"empty symbol", Buy, "", 1, "1"},
		{"blank symbol", Sell, "   ", 1, "1"},
		{"zero quantity", Buy, "XYZ", 0, "1"},
		{"negative quantity", Sell, "XYZ", -3, "1"},
		{"negative price", Buy, "XYZ", 1, "-0.001"},
		{"notional overflow", Buy, "XYZ", 100_000_000_000, "100"},
		{"quantity overflow", Sell, "XYZ", 10_000_000_000_000_000, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.side, tt.symbol, tt.qty, dec(tt.price))
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestOrderStatus(t *testing.T) {
	o, err := NewOrder(Sell, "XYZ", 10, dec("1"))
	require.NoError(t, err)

	o.decreaseQuantity(3)
	assert.Equal(t, StatusPartiallyFilled, o.Status())
	assert.Equal(t, int64(7), o.Quantity())
	assert.Equal(t, int64(10), o.OriginalQty())

	o.decreaseQuantity(7)
	assert.Equal(t, StatusFilled, o.Status())

	assert.Panics(t, func() { o.decreaseQuantity(1) })
}

func TestOrderRecordAndJSON(t *testing.T) {
	o, err := NewOrder(Sell, "XYZ", 4, dec("12.25"))
	require.NoError(t, err)
	o.seq = 9

	rec := o.Record()
	assert.Equal(t, OrderRecord{
		ID:          o.ID(),
		Side:        Sell,
		Symbol:      "XYZ",
		Quantity:    4,
		OriginalQty: 4,
		Price:       "12.250",
		Seq:         9,
	}, rec)

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded OrderRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)

	assert.Equal(t, "SELL 4/4 XYZ @ 12.250 (seq 9)", o.String())
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "UNKNOWN", Side(5).String())
}

func TestNotional(t *testing.T) {
	tests := []struct {
		price string
		qty   int64
		want  string
		ok    bool
	}{
		{"100", 10, "1000.000", true},
		{"9223.372", 1_000_000, "9223372000.000", true},
		{"0", 1_000_000_000_000_000, "0", true},
		{"100", 100_000_000_000, "", false},
		{"0", 10_000_000_000_000_000, "", false},
	}
	for _, tt := range tests {
		got, ok := notional(dec(tt.price), tt.qty)
		require.Equal(t, tt.ok, ok, "notional(%s, %d)", tt.price, tt.qty)
		if ok {
			assert.Equal(t, tt.want, got.String())
		}
	}
}
