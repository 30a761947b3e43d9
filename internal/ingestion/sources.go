package ingestion

import (
	"context"

	"listing-cache/internal/bptf"
)

// SnapshotSource fetches the current listings of one item.
// Implemented by *bptf.SnapshotClient.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, sku string) (*bptf.SnapshotResponse, error)
}

// MessageStream is one event stream connection.
// Implemented by *bptf.StreamClient.
type MessageStream interface {
	Messages() <-chan bptf.Message
	Err() error
	Close() error
}

// DialFunc opens a new event stream connection.
type DialFunc func(ctx context.Context) (MessageStream, error)

var (
	_ SnapshotSource = (*bptf.SnapshotClient)(nil)
	_ MessageStream  = (*bptf.StreamClient)(nil)
)
