// Package storetest holds the behaviour every mixing.Buffer must share.
package storetest

import (
	"context"
	"mixer/lib/mixing"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Unix(1700000000, 0).UTC()

// Run exercises a fresh buffer per sub test. newBuffer must return an empty
// buffer; Run closes it.
func Run(t *testing.T, newBuffer func(t *testing.T) mixing.Buffer) {
	cases := []struct {
		name string
		test func(t *testing.T, buffer mixing.Buffer)
	}{
		{"InsertQuery", testInsertQuery},
		{"KeysAreIsolated", testKeysAreIsolated},
		{"DuplicatesKept", testDuplicatesKept},
		{"Count", testCount},
		{"Delete", testDelete},
		{"PrefixKeys", testPrefixKeys},
		{"Concurrent", testConcurrent},
		{"Closed", testClosed},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			buffer := newBuffer(t)
			defer buffer.Close()
			c.test(t, buffer)
		})
	}
}

func packet(key, origin, body string) mixing.Packet {
	return mixing.Packet{Key: key, Origin: origin, Time: at, Body: []byte(body)}
}

func sorted(packets []mixing.Packet) []mixing.Packet {
	sort.Slice(packets, func(i, j int) bool {
		return string(packets[i].Body) < string(packets[j].Body)
	})
	return packets
}

func testInsertQuery(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	empty, err := buffer.Query(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o2", "b")))

	packets, err := buffer.Query(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []mixing.Packet{packet("k1", "o1", "a"), packet("k1", "o2", "b")}, sorted(packets))
}

func testKeysAreIsolated(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k2", "o1", "b")))

	packets, err := buffer.Query(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, []mixing.Packet{packet("k2", "o1", "b")}, packets)
}

func testDuplicatesKept(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))

	packets, err := buffer.Query(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, packets, 2)
}

func testCount(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	count, err := buffer.Count(ctx, "k1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "b")))
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o2", "c")))
	require.NoError(t, buffer.Insert(ctx, packet("k2", "o1", "d")))

	count, err = buffer.Count(ctx, "k1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = buffer.Count(ctx, "k1", "o2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = buffer.Count(ctx, "k1", "o3")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testDelete(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	require.NoError(t, buffer.Delete(ctx, "missing"))

	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k2", "o1", "b")))
	require.NoError(t, buffer.Delete(ctx, "k1"))

	packets, err := buffer.Query(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, packets)
	count, err := buffer.Count(ctx, "k1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	packets, err = buffer.Query(ctx, "k2")
	require.NoError(t, err)
	assert.Len(t, packets, 1)
}

// keys sharing a prefix must not leak into each other.
func testPrefixKeys(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	require.NoError(t, buffer.Insert(ctx, packet("k", "o1", "a")))
	require.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "b")))
	require.NoError(t, buffer.Insert(ctx, packet("k:1", "o1", "c")))

	packets, err := buffer.Query(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []mixing.Packet{packet("k", "o1", "a")}, packets)

	require.NoError(t, buffer.Delete(ctx, "k"))
	packets, err = buffer.Query(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, packets, 1)
	packets, err = buffer.Query(ctx, "k:1")
	require.NoError(t, err)
	assert.Len(t, packets, 1)
}

func testConcurrent(t *testing.T, buffer mixing.Buffer) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, buffer.Insert(ctx, packet("k1", "o1", "x")))
			}
		}()
	}
	wg.Wait()

	count, err := buffer.Count(ctx, "k1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 200, count)
}

func testClosed(t *testing.T, buffer mixing.Buffer) {
	require.NoError(t, buffer.Close())
	assert.Error(t, buffer.Insert(context.Background(), packet("k1", "o1", "a")))
	assert.NoError(t, buffer.Close())
}
