package monitor

import "context"

// SnapshotSlot is a single durable slot holding the serialized monitor list.
// Load returns nil, nil when nothing was saved yet.
type SnapshotSlot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
