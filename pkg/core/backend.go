package core

import "context"

// Backend persists engine snapshots. Load returns ErrNoSnapshot when
// nothing has been saved yet.
type Backend interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Close() error
}
