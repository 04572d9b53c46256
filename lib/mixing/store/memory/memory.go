package memory

import (
	"context"
	"mixer/lib/mixing"
	"sync"

	"github.com/google/uuid"
)

// Store keeps the packets of every open window in process memory.
type Store struct {
	mutex   sync.RWMutex
	windows map[string]map[string]mixing.Packet
	closed  bool
}

func New() *Store {
	return &Store{windows: map[string]map[string]mixing.Packet{}}
}

func (s *Store) Insert(_ context.Context, packet mixing.Packet) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return mixing.ErrStoreClosed
	}
	records, ok := s.windows[packet.Key]
	if !ok {
		records = map[string]mixing.Packet{}
		s.windows[packet.Key] = records
	}
	records[uuid.NewString()] = packet
	return nil
}

func (s *Store) Query(_ context.Context, key string) ([]mixing.Packet, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return nil, mixing.ErrStoreClosed
	}
	records := s.windows[key]
	packets := make([]mixing.Packet, 0, len(records))
	for _, packet := range records {
		packets = append(packets, packet)
	}
	return packets, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return mixing.ErrStoreClosed
	}
	delete(s.windows, key)
	return nil
}

func (s *Store) Count(_ context.Context, key string, origin string) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return 0, mixing.ErrStoreClosed
	}
	count := 0
	for _, packet := range s.windows[key] {
		if packet.Origin == origin {
			count++
		}
	}
	return count, nil
}

func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	s.windows = nil
	return nil
}
