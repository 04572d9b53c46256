package pebble

import (
	"context"
	"encoding/binary"
	"mixer/lib/log"
	"mixer/lib/mixing"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultCacheSize = 8 << 20

type Options struct {
	// Path is the database directory, empty keeps everything in memory.
	Path      string
	CacheSize int64
	// NoSync skips the fsync of every write.
	NoSync bool
}

// Store files packets in a pebble LSM. Records are keyed by the length
// prefixed window key followed by a random record id, so the packets of one
// window form a contiguous range.
type Store struct {
	mutex  sync.RWMutex
	db     *pebble.DB
	write  *pebble.WriteOptions
	closed bool
}

func Open(opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	pebbleOpts := &pebble.Options{
		Cache:  cache,
		Logger: log.Named("pebble"),
	}
	if opts.Path == "" {
		pebbleOpts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(opts.Path, pebbleOpts)
	if err != nil {
		return nil, errors.WithMessagef(err, "can't open pebble at %q", opts.Path)
	}
	write := pebble.Sync
	if opts.NoSync {
		write = pebble.NoSync
	}
	return &Store{db: db, write: write}, nil
}

func (s *Store) Insert(_ context.Context, packet mixing.Packet) error {
	value, err := json.Marshal(packet)
	if err != nil {
		return errors.WithMessage(err, "can't encode packet")
	}
	id := uuid.New()

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return mixing.ErrStoreClosed
	}
	return s.db.Set(append(windowPrefix(packet.Key), id[:]...), value, s.write)
}

func (s *Store) Query(_ context.Context, key string) ([]mixing.Packet, error) {
	var packets []mixing.Packet
	err := s.scan(key, func(packet mixing.Packet) {
		packets = append(packets, packet)
	})
	return packets, err
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return mixing.ErrStoreClosed
	}
	prefix := windowPrefix(key)
	return s.db.DeleteRange(prefix, upperBound(prefix), s.write)
}

func (s *Store) Count(_ context.Context, key string, origin string) (int, error) {
	count := 0
	err := s.scan(key, func(packet mixing.Packet) {
		if packet.Origin == origin {
			count++
		}
	})
	return count, err
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) scan(key string, fn func(packet mixing.Packet)) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return mixing.ErrStoreClosed
	}

	prefix := windowPrefix(key)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return errors.WithMessagef(err, "can't iterate window %s", key)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var packet mixing.Packet
		if err = json.Unmarshal(iter.Value(), &packet); err != nil {
			return errors.WithMessagef(err, "corrupted record in window %s", key)
		}
		fn(packet)
	}
	return iter.Error()
}

func windowPrefix(key string) []byte {
	prefix := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(key)+len(uuid.UUID{}))
	n := binary.PutUvarint(prefix, uint64(len(key)))
	return append(prefix[:n], key...)
}

// upperBound returns the smallest key greater than every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
