package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/erain9/stocksim/pkg/core"
)

// DefaultPath is the state file used when none is configured
const DefaultPath = "stock_market.json"

// FileBackend persists the snapshot as a JSON document on disk. Files
// written by older versions (orders as [price, symbol, quantity] triples)
// are read as well.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a backend storing state at path
func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultPath
	}
	return &FileBackend{path: path}
}

// Path returns the state file location
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads and decodes the state file
func (b *FileBackend) Load(ctx context.Context) (*core.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.ErrNoSnapshot
	}

	var snapshot core.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", core.ErrInvalidSnapshot, b.path, err)
	}
	return &snapshot, nil
}

// Save writes the snapshot to a temporary file and renames it over the
// state file, so a crash never leaves a truncated document behind.
func (b *FileBackend) Save(ctx context.Context, snapshot *core.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("rename to %s: %w", b.path, err)
	}
	return nil
}

// Name returns the backend driver name
func (b *FileBackend) Name() string {
	return "file"
}

// Close does nothing
func (b *FileBackend) Close() error {
	return nil
}

var _ core.Backend = (*FileBackend)(nil)
