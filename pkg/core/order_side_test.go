package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(t *testing.T, side Side, price string, qty int64, seq uint64) *Order {
	t.Helper()
	o, err := NewOrder(side, "XYZ", qty, dec(price))
	require.NoError(t, err)
	o.seq = seq
	return o
}

func TestOrderSide_BidOrdering(t *testing.T) {
	bids := NewOrderSide(Buy)
	assert.Nil(t, bids.Best())
	assert.Nil(t, bids.PopBest())

	bids.Insert(testOrder(t, Buy, "10", 1, 1))
	bids.Insert(testOrder(t, Buy, "12", 1, 2))
	bids.Insert(testOrder(t, Buy, "11", 1, 3))
	bids.Insert(testOrder(t, Buy, "12", 1, 4))

	assert.Equal(t, 4, bids.Len())
	assert.Equal(t, uint64(2), bids.Best().Seq())

	var seqs []uint64
	for _, o := range bids.Orders() {
		seqs = append(seqs, o.Seq())
	}
	assert.Equal(t, []uint64{2, 4, 3, 1}, seqs)
	assert.Equal(t, 4, bids.Len(), "Orders does not consume the heap")

	seqs = seqs[:0]
	for bids.Len() > 0 {
		seqs = append(seqs, bids.PopBest().Seq())
	}
	assert.Equal(t, []uint64{2, 4, 3, 1}, seqs)
}

func TestOrderSide_AskOrdering(t *testing.T) {
	asks := NewOrderSide(Sell)
	asks.Insert(testOrder(t, Sell, "10", 1, 1))
	asks.Insert(testOrder(t, Sell, "9.5", 1, 2))
	asks.Insert(testOrder(t, Sell, "10", 1, 3))
	asks.Insert(testOrder(t, Sell, "9.5", 1, 4))

	var seqs []uint64
	for asks.Len() > 0 {
		seqs = append(seqs, asks.PopBest().Seq())
	}
	assert.Equal(t, []uint64{2, 4, 1, 3}, seqs)
}

func TestOrderSide_FixBestKeepsPosition(t *testing.T) {
	bids := NewOrderSide(Buy)
	bids.Insert(testOrder(t, Buy, "10", 10, 1))
	bids.Insert(testOrder(t, Buy, "9", 5, 2))

	best := bids.Best()
	best.decreaseQuantity(4)
	bids.FixBest()

	assert.Same(t, best, bids.Best())
	assert.Equal(t, int64(6), bids.Best().Quantity())
	assert.Equal(t, int64(11), bids.TotalQuantity())
}

func TestOrderSide_InsertWrongSidePanics(t *testing.T) {
	bids := NewOrderSide(Buy)
	assert.Panics(t, func() { bids.Insert(testOrder(t, Sell, "1", 1, 1)) })
}

func TestOrderSide_Reset(t *testing.T) {
	asks := NewOrderSide(Sell)
	asks.reset([]*Order{
		testOrder(t, Sell, "12", 1, 1),
		testOrder(t, Sell, "10", 1, 2),
		testOrder(t, Sell, "11", 1, 3),
	})

	assert.Equal(t, Sell, asks.Side())
	assert.Equal(t, uint64(2), asks.Best().Seq())
}
