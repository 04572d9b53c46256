package context

import (
	_c "context"
	"mixer/mixer"
	"strings"
	"sync"
)

type context struct {
	ctx    _c.Context
	v      mixer.Properties
	cancel _c.CancelFunc
	kv     sync.Map
	name   string
}

func (c *context) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *context) Cancel() {
	c.cancel()
}

func (c *context) Ctx() _c.Context {
	return c.ctx
}

func (c *context) Name() string {
	return c.name
}

//Named derives a child context, its properties are the sub tree under value
func (c *context) Named(value string) mixer.Context {
	ctx, cancel := _c.WithCancel(c.ctx)
	name := value
	if c.name != "" {
		name = strings.Join([]string{c.name, value}, ".")
	}
	var sub mixer.Properties
	if c.v != nil {
		sub = c.v.Sub(value)
	}
	return &context{v: sub, ctx: ctx, cancel: cancel, name: name}
}

func (c *context) Properties() mixer.Properties {
	return c.v
}

func (c *context) Store(key string, value interface{}) {
	c.kv.Store(key, value)
}

func (c *context) Load(key string) (interface{}, bool) {
	return c.kv.Load(key)
}

func New(ctx _c.Context, properties mixer.Properties) mixer.Context {
	parent, cancelFunc := _c.WithCancel(ctx)
	c := &context{ctx: parent, v: properties, cancel: cancelFunc, name: ""}
	return c
}
