package core

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
)

// OrderSide is one side (bids or asks) of the book, kept as a binary heap
// keyed by (price, seq). Bids put the highest price first, asks the lowest;
// equal prices go in arrival order.
type OrderSide struct {
	side   Side
	orders orderHeap
}

// NewOrderSide creates an empty side for the given order side
func NewOrderSide(side Side) *OrderSide {
	return &OrderSide{
		side:   side,
		orders: orderHeap{side: side},
	}
}

// Side returns which side of the book this is
func (os *OrderSide) Side() Side {
	return os.side
}

// Len returns the number of resident orders
func (os *OrderSide) Len() int {
	return os.orders.Len()
}

// Insert adds an order in O(log n)
func (os *OrderSide) Insert(order *Order) {
	if order.side != os.side {
		panic(fmt.Sprintf("order %s is %s, side is %s", order.id, order.side, os.side))
	}
	heap.Push(&os.orders, order)
}

// Best returns the highest-priority order without removing it
func (os *OrderSide) Best() *Order {
	if os.orders.Len() == 0 {
		return nil
	}
	return os.orders.items[0]
}

// PopBest removes and returns the highest-priority order
func (os *OrderSide) PopBest() *Order {
	if os.orders.Len() == 0 {
		return nil
	}
	return heap.Pop(&os.orders).(*Order)
}

// FixBest restores heap order after the best order changed in place
func (os *OrderSide) FixBest() {
	if os.orders.Len() > 0 {
		heap.Fix(&os.orders, 0)
	}
}

// Orders returns the resident orders in priority order
func (os *OrderSide) Orders() []*Order {
	out := make([]*Order, len(os.orders.items))
	copy(out, os.orders.items)
	sort.Slice(out, func(i, j int) bool {
		return os.orders.before(out[i], out[j])
	})
	return out
}

// TotalQuantity returns the summed remaining quantity of all resident orders
func (os *OrderSide) TotalQuantity() int64 {
	var total int64
	for _, o := range os.orders.items {
		total += o.quantity
	}
	return total
}

// reset replaces the content and re-establishes the heap invariant
func (os *OrderSide) reset(orders []*Order) {
	os.orders.items = orders
	heap.Init(&os.orders)
}

// String implements fmt.Stringer interface
func (os *OrderSide) String() string {
	sb := strings.Builder{}
	for _, o := range os.Orders() {
		sb.WriteString(fmt.Sprintf("\n%s %s -> qty: %d (seq %d)", o.symbol, o.price, o.quantity, o.seq))
	}
	return sb.String()
}

// orderHeap implements heap.Interface over resident orders
type orderHeap struct {
	side  Side
	items []*Order
}

func (h orderHeap) before(a, b *Order) bool {
	if !a.price.Equal(b.price) {
		if h.side == Buy {
			return a.price.GreaterThan(b.price)
		}
		return a.price.LessThan(b.price)
	}
	return a.seq < b.seq
}

func (h orderHeap) Len() int           { return len(h.items) }
func (h orderHeap) Less(i, j int) bool { return h.before(h.items[i], h.items[j]) }
func (h orderHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *orderHeap) Push(x any) {
	h.items = append(h.items, x.(*Order))
}

func (h *orderHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}
