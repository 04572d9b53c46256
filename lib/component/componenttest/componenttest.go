// Package componenttest builds contexts and captures emitted events for component tests.
package componenttest

import (
	_c "context"
	"mixer/lib/context"
	"mixer/lib/properties"
	"mixer/mixer"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

//NewContext parses a yaml document and returns the context named after name,
//with the defaults of def applied. The context is cancelled when the test ends.
func NewContext(t *testing.T, config string, name string, def mixer.PropertiesDef) mixer.Context {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(config)))
	root := context.New(_c.Background(), properties.FromViper(v))
	ctx := root.Named(name)
	require.NotNil(t, ctx.Properties(), "no properties under %s", name)
	_, err := properties.InitAndRender(ctx.Properties(), def)
	require.NoError(t, err)
	t.Cleanup(root.Cancel)
	return ctx
}

//Collector records what a component hands to its EmitNext.
type Collector struct {
	mutex    sync.Mutex
	events   []*mixer.Event
	handlers []mixer.ACKHandler
}

func (c *Collector) EmitNext(event *mixer.Event, handler mixer.ACKHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.events = append(c.events, event)
	c.handlers = append(c.handlers, handler)
}

func (c *Collector) Events() []*mixer.Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]*mixer.Event(nil), c.events...)
}

func (c *Collector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.events)
}

//ACKAll runs every recorded handler once.
func (c *Collector) ACKAll() {
	c.mutex.Lock()
	handlers := c.handlers
	c.handlers = make([]mixer.ACKHandler, len(handlers))
	c.mutex.Unlock()
	for _, handler := range handlers {
		if handler != nil {
			handler()
		}
	}
}

//ACKCounter returns an event carrying an ACK handler and the counter it bumps.
func ACKCounter(message any) (*mixer.Event, *Counter) {
	counter := &Counter{}
	return &mixer.Event{
		Message: message,
		Private: map[string]any{mixer.PrivateACKHandler: mixer.ACKHandler(counter.inc)},
	}, counter
}

type Counter struct {
	mutex sync.Mutex
	n     int
}

func (c *Counter) inc() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.n++
}

func (c *Counter) Value() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.n
}
