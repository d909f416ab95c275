package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/erain9/stocksim/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	keyBalance    = []byte("snapshot/balance")
	keyPortfolio  = []byte("snapshot/portfolio")
	keyBuyOrders  = []byte("snapshot/buy_orders")
	keySellOrders = []byte("snapshot/sell_orders")
	keyNextSeq    = []byte("snapshot/next_seq")
)

// PebbleBackend stores each snapshot record under its own key, msgpack
// encoded. A save is committed as one atomic batch.
type PebbleBackend struct {
	db *pebble.DB
}

// NewPebbleBackend opens a Pebble database at the given path
func NewPebbleBackend(path string) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleBackend{db: db}, nil
}

// Load reads the snapshot records
func (b *PebbleBackend) Load(ctx context.Context) (*core.Snapshot, error) {
	snapshot := &core.Snapshot{}

	found, err := b.get(keyBalance, &snapshot.Balance)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNoSnapshot
	}

	if _, err := b.get(keyPortfolio, &snapshot.Portfolio); err != nil {
		return nil, err
	}
	if _, err := b.get(keyBuyOrders, &snapshot.BuyOrders); err != nil {
		return nil, err
	}
	if _, err := b.get(keySellOrders, &snapshot.SellOrders); err != nil {
		return nil, err
	}
	if _, err := b.get(keyNextSeq, &snapshot.NextSeq); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (b *PebbleBackend) get(key []byte, v any) (bool, error) {
	data, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer closer.Close()

	if err := msgpack.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", core.ErrInvalidSnapshot, key, err)
	}
	return true, nil
}

// Save writes all snapshot records in one synced batch
func (b *PebbleBackend) Save(ctx context.Context, snapshot *core.Snapshot) error {
	batch := b.db.NewBatch()
	defer batch.Close()

	records := []struct {
		key []byte
		val any
	}{
		{keyBalance, snapshot.Balance},
		{keyPortfolio, snapshot.Portfolio},
		{keyBuyOrders, snapshot.BuyOrders},
		{keySellOrders, snapshot.SellOrders},
		{keyNextSeq, snapshot.NextSeq},
	}

	for _, r := range records {
		data, err := msgpack.Marshal(r.val)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", r.key, err)
		}
		if err := batch.Set(r.key, data, nil); err != nil {
			return fmt.Errorf("failed to stage %s: %w", r.key, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Name returns the backend driver name
func (b *PebbleBackend) Name() string {
	return "pebble"
}

// Close closes the database
func (b *PebbleBackend) Close() error {
	return b.db.Close()
}

var _ core.Backend = (*PebbleBackend)(nil)
