package mock

import (
	"mixer/lib/component/componenttest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_RotatesAndStopsAtLimit(t *testing.T) {
	s := New()
	ctx := componenttest.NewContext(t, `
source:
  mock:
    interval: 1
    keys: 2
    origins: 3
    limit: 6
`, "source.mock", s.PropertiesDef())
	require.NoError(t, s.Open(ctx))

	collector := &componenttest.Collector{}
	done := make(chan error, 1)
	go func() {
		done <- s.Collect(collector.EmitNext)
	}()

	assert.Eventually(t, func() bool { return collector.Len() == 6 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 6, collector.Len())

	var keys, origins []string
	for _, event := range collector.Events() {
		message := event.Message.(map[string]any)
		keys = append(keys, message["identifier"].(map[string]any)["value"].(string))
		origins = append(origins, message["origin"].(string))
	}
	assert.Equal(t, []string{"key-0", "key-1", "key-0", "key-1", "key-0", "key-1"}, keys)
	assert.Equal(t, []string{"origin-0", "origin-1", "origin-2", "origin-0", "origin-1", "origin-2"}, origins)

	ctx.Cancel()
	require.NoError(t, <-done)
	require.NoError(t, s.Close())
}
