package sample

import (
	"mixer/lib/component"
	"mixer/lib/emit"
	"mixer/lib/properties"
	"mixer/mixer"
	"sync/atomic"
)

var (
	RateProperty = properties.NewProperty[uint64]("rate", "forward one event out of rate", 10)
)

type operator struct {
	ctx   mixer.Context
	acker mixer.ACKer

	rate uint64
	ops  uint64
	next *emit.Deferred
}

func (o *operator) Open(ctx mixer.Context) error {
	o.ctx = ctx
	o.acker = mixer.NewACKer()
	o.next = emit.NewDeferred()
	o.rate = ctx.Properties().GetUint64(RateProperty)
	if o.rate == 0 {
		o.rate = 1
	}
	return nil
}

func (o *operator) Close() error {
	o.acker.Close()
	return nil
}

func (o *operator) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{RateProperty}
}

func (o *operator) Collect(emitNext mixer.EmitNext) error {
	o.next.Set(emitNext)
	<-o.ctx.Done()
	return nil
}

func (o *operator) GenerateEmit(_ mixer.Context) mixer.Emit {
	return func(event *mixer.Event) {
		if atomic.AddUint64(&o.ops, 1)%o.rate == 0 {
			o.next.Emit(o.ctx.Done(), event, nil)
			return
		}
		//dropped events are done as far as upstream cares
		o.acker.OnACK(event, true)
	}
}

func New() mixer.Operator {
	return &operator{}
}

func init() {
	component.RegisterNewOperatorFunc("sample", New)
}
