package memory

import (
	"context"
	"sync"

	"github.com/erain9/stocksim/pkg/core"
)

// MemoryBackend keeps the last saved snapshot in memory
type MemoryBackend struct {
	sync.RWMutex
	snapshot *core.Snapshot
	saves    int
}

// NewMemoryBackend creates a new empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load returns a copy of the last saved snapshot
func (b *MemoryBackend) Load(ctx context.Context) (*core.Snapshot, error) {
	b.RLock()
	defer b.RUnlock()

	if b.snapshot == nil {
		return nil, core.ErrNoSnapshot
	}
	return b.snapshot.Clone(), nil
}

// Save stores a copy of the snapshot
func (b *MemoryBackend) Save(ctx context.Context, snapshot *core.Snapshot) error {
	b.Lock()
	defer b.Unlock()

	b.snapshot = snapshot.Clone()
	b.saves++
	return nil
}

// Saves returns how many times Save was called
func (b *MemoryBackend) Saves() int {
	b.RLock()
	defer b.RUnlock()
	return b.saves
}

// Name returns the backend driver name
func (b *MemoryBackend) Name() string {
	return "memory"
}

// Close does nothing
func (b *MemoryBackend) Close() error {
	return nil
}

var _ core.Backend = (*MemoryBackend)(nil)
