package replicating

import (
	_c "context"
	"mixer/lib/context"
	"mixer/lib/properties"
	"mixer/mixer"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T, config string) mixer.Context {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(config)))
	return context.New(_c.Background(), properties.FromViper(v))
}

const config = `
global:
  mode: %s
source:
  mock:
    outputs: ["^sink\\..*"]
sink:
  a: {}
  b: {}
operator:
  other: {}
`

func generators(received map[string][]*mixer.Event, ctxs ...mixer.Context) map[mixer.Context]mixer.EmitGenerator {
	all := map[mixer.Context]mixer.EmitGenerator{}
	for _, ctx := range ctxs {
		name := ctx.Name()
		all[ctx] = func(_ mixer.Context) mixer.Emit {
			return func(event *mixer.Event) {
				received[name] = append(received[name], event)
			}
		}
	}
	return all
}

func TestGenerator_ACK(t *testing.T) {
	root := newRoot(t, strings.Replace(config, "%s", mixer.ACK, 1))
	source := root.Named("source.mock")
	sinkA, sinkB, other := root.Named("sink.a"), root.Named("sink.b"), root.Named("operator.other")

	received := map[string][]*mixer.Event{}
	topology := map[mixer.Context][]mixer.Context{}
	emitNext := Generator(source, generators(received, source, sinkA, sinkB, other), topology)

	acked := 0
	event := &mixer.Event{Message: "m"}
	emitNext(event, func() { acked++ })

	assert.Len(t, received["sink.a"], 1)
	assert.Len(t, received["sink.b"], 1)
	assert.Empty(t, received["operator.other"])
	assert.Equal(t, []mixer.Context{source}, topology[sinkA])

	acker := mixer.NewACKer()
	acker.OnACK(event, true)
	assert.Equal(t, 0, acked)
	acker.OnACK(event, true)
	assert.Equal(t, 1, acked)
}

func TestGenerator_Snapshot(t *testing.T) {
	root := newRoot(t, strings.Replace(config, "%s", mixer.Snapshot, 1))
	source := root.Named("source.mock")
	sinkA, sinkB := root.Named("sink.a"), root.Named("sink.b")

	received := map[string][]*mixer.Event{}
	emitNext := Generator(source, generators(received, source, sinkA, sinkB), map[mixer.Context][]mixer.Context{})

	acked := 0
	emitNext(&mixer.Event{Message: "m"}, func() { acked++ })
	assert.Equal(t, 1, acked)
	assert.Len(t, received["sink.a"], 1)
}

func TestGenerator_Panics(t *testing.T) {
	root := newRoot(t, strings.Replace(config, "%s", "exactly-once", 1))
	source := root.Named("source.mock")
	sinkA := root.Named("sink.a")
	assert.Panics(t, func() {
		Generator(source, generators(map[string][]*mixer.Event{}, sinkA), map[mixer.Context][]mixer.Context{})
	})
	assert.Panics(t, func() {
		Generator(source, generators(map[string][]*mixer.Event{}, root.Named("operator.other")), map[mixer.Context][]mixer.Context{})
	})
}
