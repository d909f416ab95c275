package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/erain9/stocksim/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DefaultAddr is used when RedisOptions.Addr is empty
const DefaultAddr = "localhost:6379"

// NewRedisClient creates a Redis client from options
func NewRedisClient(options RedisOptions) *redis.Client {
	if options.Addr == "" {
		options.Addr = DefaultAddr
	}
	return redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
}

// RedisBackend stores the snapshot under a key prefix: the balance and
// next sequence as strings, the portfolio as a hash and each book side as
// a JSON encoded list.
type RedisBackend struct {
	sync.Mutex
	client       *redis.Client
	balanceKey   string
	portfolioKey string
	buyKey       string
	sellKey      string
	nextSeqKey   string
	logger       *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{
		client:       client,
		balanceKey:   fmt.Sprintf("%s:balance", prefix),
		portfolioKey: fmt.Sprintf("%s:portfolio", prefix),
		buyKey:       fmt.Sprintf("%s:buy_orders", prefix),
		sellKey:      fmt.Sprintf("%s:sell_orders", prefix),
		nextSeqKey:   fmt.Sprintf("%s:next_seq", prefix),
		logger:       logger,
	}
}

// Load reads every snapshot key in a single round trip
func (b *RedisBackend) Load(ctx context.Context) (*core.Snapshot, error) {
	b.Lock()
	defer b.Unlock()

	pipe := b.client.Pipeline()
	balanceCmd := pipe.Get(ctx, b.balanceKey)
	portfolioCmd := pipe.HGetAll(ctx, b.portfolioKey)
	buyCmd := pipe.Get(ctx, b.buyKey)
	sellCmd := pipe.Get(ctx, b.sellKey)
	nextSeqCmd := pipe.Get(ctx, b.nextSeqKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		b.logger.Error("Failed to load snapshot", zap.Error(err))
		return nil, fmt.Errorf("redis load: %w", err)
	}

	balance, err := balanceCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis load balance: %w", err)
	}

	snapshot := &core.Snapshot{
		Balance:   balance,
		Portfolio: make(map[string]int64),
	}

	for symbol, raw := range portfolioCmd.Val() {
		qty, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: holding %s=%q", core.ErrInvalidSnapshot, symbol, raw)
		}
		snapshot.Portfolio[symbol] = qty
	}

	if snapshot.BuyOrders, err = b.decodeOrders(buyCmd); err != nil {
		return nil, err
	}
	if snapshot.SellOrders, err = b.decodeOrders(sellCmd); err != nil {
		return nil, err
	}

	if raw, err := nextSeqCmd.Result(); err == nil {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: next_seq %q", core.ErrInvalidSnapshot, raw)
		}
		snapshot.NextSeq = seq
	}

	return snapshot, nil
}

func (b *RedisBackend) decodeOrders(cmd *redis.StringCmd) ([]core.OrderRecord, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load orders: %w", err)
	}

	var orders []core.OrderRecord
	if err := json.Unmarshal(data, &orders); err != nil {
		b.logger.Error("Failed to unmarshal orders", zap.Error(err))
		return nil, fmt.Errorf("%w: orders: %v", core.ErrInvalidSnapshot, err)
	}
	return orders, nil
}

// Save replaces every snapshot key inside a MULTI/EXEC transaction
func (b *RedisBackend) Save(ctx context.Context, snapshot *core.Snapshot) error {
	buyData, err := json.Marshal(snapshot.BuyOrders)
	if err != nil {
		return fmt.Errorf("encode buy orders: %w", err)
	}
	sellData, err := json.Marshal(snapshot.SellOrders)
	if err != nil {
		return fmt.Errorf("encode sell orders: %w", err)
	}

	b.Lock()
	defer b.Unlock()

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.balanceKey, snapshot.Balance, 0)
		pipe.Del(ctx, b.portfolioKey)
		if len(snapshot.Portfolio) > 0 {
			fields := make(map[string]any, len(snapshot.Portfolio))
			for symbol, qty := range snapshot.Portfolio {
				fields[symbol] = qty
			}
			pipe.HSet(ctx, b.portfolioKey, fields)
		}
		pipe.Set(ctx, b.buyKey, buyData, 0)
		pipe.Set(ctx, b.sellKey, sellData, 0)
		pipe.Set(ctx, b.nextSeqKey, snapshot.NextSeq, 0)
		return nil
	})
	if err != nil {
		b.logger.Error("Failed to save snapshot", zap.Error(err))
		return fmt.Errorf("redis save: %w", err)
	}

	b.logger.Debug("Saved snapshot",
		zap.String("balance", snapshot.Balance),
		zap.Int("buy_orders", len(snapshot.BuyOrders)),
		zap.Int("sell_orders", len(snapshot.SellOrders)))
	return nil
}

// Name returns the backend driver name
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close closes the redis client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

var _ core.Backend = (*RedisBackend)(nil)
