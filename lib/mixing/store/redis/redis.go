package redis

import (
	"context"
	"mixer/lib/mixing"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "mixer"

// Store keeps the packets of a window in the hash <prefix>:{<key>}:packets
// and the per origin counters in <prefix>:{<key>}:origins. The hash tag keeps
// both on the same cluster slot so they can be written in one transaction.
type Store struct {
	client redis.UniversalClient
	prefix string

	closeOnce sync.Once
	closeErr  error
}

func New(options *redis.UniversalOptions, prefix string) *Store {
	return NewWithClient(redis.NewUniversalClient(options), prefix)
}

func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) packetsKey(key string) string {
	return s.prefix + ":{" + key + "}:packets"
}

func (s *Store) originsKey(key string) string {
	return s.prefix + ":{" + key + "}:origins"
}

func (s *Store) Insert(ctx context.Context, packet mixing.Packet) error {
	value, err := json.Marshal(packet)
	if err != nil {
		return errors.WithMessage(err, "can't encode packet")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.packetsKey(packet.Key), uuid.NewString(), value)
		pipe.HIncrBy(ctx, s.originsKey(packet.Key), packet.Origin, 1)
		return nil
	})
	return errors.WithMessagef(err, "can't insert packet of window %s", packet.Key)
}

func (s *Store) Query(ctx context.Context, key string) ([]mixing.Packet, error) {
	values, err := s.client.HVals(ctx, s.packetsKey(key)).Result()
	if err != nil {
		return nil, errors.WithMessagef(err, "can't read window %s", key)
	}
	packets := make([]mixing.Packet, 0, len(values))
	for _, value := range values {
		var packet mixing.Packet
		if err = json.Unmarshal([]byte(value), &packet); err != nil {
			return nil, errors.WithMessagef(err, "corrupted record in window %s", key)
		}
		packets = append(packets, packet)
	}
	return packets, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.packetsKey(key), s.originsKey(key)).Err()
	return errors.WithMessagef(err, "can't delete window %s", key)
}

func (s *Store) Count(ctx context.Context, key string, origin string) (int, error) {
	count, err := s.client.HGet(ctx, s.originsKey(key), origin).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithMessagef(err, "can't count window %s", key)
	}
	return count, nil
}

//Close closes the client once, later calls return the first result
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
