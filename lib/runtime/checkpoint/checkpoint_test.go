package checkpoint

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state struct {
	data     []byte
	restored []byte
	err      error
}

func (s *state) Snapshot() ([]byte, error) {
	return s.data, s.err
}

func (s *state) Restore(snapshot []byte) error {
	s.restored = snapshot
	return nil
}

func TestStore_SaveRestore(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	fresh := &state{}
	require.NoError(t, store.Restore("source.files", fresh))
	assert.Nil(t, fresh.restored)

	require.NoError(t, store.Save("source.files", &state{data: []byte("offset-1")}))
	require.NoError(t, store.Save("source.files", &state{data: []byte("offset-2")}))

	restored := &state{}
	require.NoError(t, store.Restore("source.files", restored))
	assert.Equal(t, []byte("offset-2"), restored.restored)

	other := &state{}
	require.NoError(t, store.Restore("source.other", other))
	assert.Nil(t, other.restored)
}

func TestStore_SnapshotError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	boom := errors.New("boom")
	assert.ErrorIs(t, store.Save("source.files", &state{err: boom}), boom)

	restored := &state{}
	require.NoError(t, store.Restore("source.files", restored))
	assert.Nil(t, restored.restored)
}
