package redis

import (
	"context"
	"testing"

	"github.com/erain9/stocksim/pkg/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupTestRedis initializes a Redis client for testing.
// It assumes Redis is running on localhost:6379.
// Flushes the DB before returning the client.
func setupTestRedis(t *testing.T) *redis.Client {
	client := NewRedisClient(RedisOptions{Addr: "localhost:6379"})
	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		t.Skipf("Skipping Redis tests: Cannot connect to Redis (%v)", err)
	}
	err = client.FlushDB(context.Background()).Err()
	if err != nil {
		t.Fatalf("Failed to flush Redis DB: %v", err)
	}
	return client
}

func TestNewRedisClientDefaults(t *testing.T) {
	client := NewRedisClient(RedisOptions{DB: 2})
	defer client.Close()

	assert.Equal(t, DefaultAddr, client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
}

func TestNewRedisBackendKeys(t *testing.T) {
	client := NewRedisClient(RedisOptions{Addr: "localhost:6379"})
	defer client.Close()

	backend := NewRedisBackend(client, "stocksim", nil)
	assert.Equal(t, "stocksim:balance", backend.balanceKey)
	assert.Equal(t, "stocksim:portfolio", backend.portfolioKey)
	assert.Equal(t, "stocksim:buy_orders", backend.buyKey)
	assert.Equal(t, "stocksim:sell_orders", backend.sellKey)
	assert.Equal(t, "stocksim:next_seq", backend.nextSeqKey)
	assert.NotNil(t, backend.logger)
	assert.Equal(t, "redis", backend.Name())
}

func TestRedisBackend_LoadEmpty(t *testing.T) {
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:empty", zaptest.NewLogger(t))

	_, err := backend.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrNoSnapshot)
}

func TestRedisBackend_SaveLoad(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	backend := NewRedisBackend(client, "test:snapshot", zaptest.NewLogger(t))

	snapshot := &core.Snapshot{
		Balance:   "9450.000",
		Portfolio: map[string]int64{"XYZ": 10, "ABC": 3},
		BuyOrders: []core.OrderRecord{
			{ID: "b1", Side: core.Buy, Symbol: "XYZ", Quantity: 5, OriginalQty: 5, Price: "50.000", Seq: 1},
		},
		SellOrders: []core.OrderRecord{
			{ID: "s1", Side: core.Sell, Symbol: "ABC", Quantity: 2, OriginalQty: 3, Price: "60.000", Seq: 2},
		},
		NextSeq: 3,
	}
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)

	// a later save with fewer holdings must not keep stale symbols
	snapshot.Portfolio = map[string]int64{"XYZ": 1}
	snapshot.BuyOrders = nil
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"XYZ": 1}, loaded.Portfolio)
	assert.Empty(t, loaded.BuyOrders)
}
