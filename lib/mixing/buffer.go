package mixing

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrMissingKey   = errors.New("packet has no grouping key")
	ErrWindowExists = errors.New("window already registered")
	ErrStoreClosed  = errors.New("store is closed")
)

// Buffer is a keyed multimap holding the packets of the open windows.
// Implementations must be safe for concurrent use; each call is atomic with
// respect to the key it touches.
type Buffer interface {
	// Insert files the packet under packet.Key. Duplicates are kept.
	Insert(ctx context.Context, packet Packet) error
	// Query returns every packet filed under key, without any storage
	// identifier, in no particular order.
	Query(ctx context.Context, key string) ([]Packet, error)
	// Delete removes every packet filed under key, it is a no-op for unknown keys.
	Delete(ctx context.Context, key string) error
	// Count returns the number of packets filed under key sent by origin.
	Count(ctx context.Context, key string, origin string) (int, error)
	// Close releases the underlying storage.
	Close() error
}
