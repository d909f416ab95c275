package pebble

import (
	"context"
	"testing"

	"github.com/erain9/stocksim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleBackend_LoadEmpty(t *testing.T) {
	backend, err := NewPebbleBackend(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrNoSnapshot)
}

func TestPebbleBackend_SaveLoadReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewPebbleBackend(dir)
	require.NoError(t, err)

	snapshot := &core.Snapshot{
		Balance:   "10000.000",
		Portfolio: map[string]int64{"XYZ": 10},
		BuyOrders: []core.OrderRecord{
			{ID: "b1", Side: core.Buy, Symbol: "ABC", Quantity: 7, OriginalQty: 10, Price: "12.500", Seq: 3},
			{ID: "b2", Side: core.Buy, Symbol: "ABC", Quantity: 1, OriginalQty: 1, Price: "12.000", Seq: 4},
		},
		SellOrders: []core.OrderRecord{
			{ID: "s1", Side: core.Sell, Symbol: "XYZ", Quantity: 2, OriginalQty: 2, Price: "99.000", Seq: 5},
		},
		NextSeq: 6,
	}
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
	require.NoError(t, backend.Close())

	reopened, err := NewPebbleBackend(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}

func TestPebbleBackend_RoundTripThroughEngine(t *testing.T) {
	ctx := context.Background()
	backend, err := NewPebbleBackend(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	engine := core.NewEngine(mustDecimal(t, "1000"), core.WithHoldings(map[string]int64{"XYZ": 5}))
	_, err = engine.SubmitBuy(ctx, "ABC", 10, mustDecimal(t, "20"))
	require.NoError(t, err)
	_, err = engine.SubmitSell(ctx, "XYZ", 2, mustDecimal(t, "30"))
	require.NoError(t, err)

	require.NoError(t, backend.Save(ctx, engine.Snapshot()))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)

	restored := core.NewEngine(mustDecimal(t, "0"))
	require.NoError(t, restored.Restore(loaded))

	assert.Equal(t, engine.Cash().String(), restored.Cash().String())
	assert.Equal(t, engine.Holdings(), restored.Holdings())
	assert.Equal(t, engine.BuyOrders(), restored.BuyOrders())
	assert.Equal(t, engine.SellOrders(), restored.SellOrders())
}

func TestPebbleBackendName(t *testing.T) {
	backend, err := NewPebbleBackend(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	assert.Equal(t, "pebble", backend.Name())
}
