package echo

import (
	"fmt"
	"mixer/lib/component/componenttest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho_Batches(t *testing.T) {
	s := New().(*sink)
	ctx := componenttest.NewContext(t, "sink:\n  echo:\n    batch: 2\n", "sink.echo", s.PropertiesDef())
	require.NoError(t, s.Open(ctx))

	var echoed []string
	s.echoFunc = func(format string, args ...interface{}) {
		echoed = append(echoed, fmt.Sprintf(format, args...))
	}

	emit := s.GenerateEmit(ctx)
	first, firstACK := componenttest.ACKCounter("a")
	second, secondACK := componenttest.ACKCounter("b")
	third, thirdACK := componenttest.ACKCounter("c")

	emit(first)
	assert.Empty(t, echoed)
	emit(second)
	assert.Len(t, echoed, 2)
	assert.Equal(t, 1, firstACK.Value())
	assert.Equal(t, 1, secondACK.Value())

	emit(third)
	assert.Len(t, echoed, 2)
	require.NoError(t, s.Close())
	assert.Len(t, echoed, 3)
	assert.Equal(t, 1, thirdACK.Value())
}
