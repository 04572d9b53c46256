package tengo

import (
	"mixer/lib/component"
	"mixer/lib/emit"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"

	"github.com/d5/tengo/v2"
)

var (
	ScriptProperty = properties.NewRequiredProperty[string]("script", "tengo script, rewrites the `event` variable.")
)

type scriptOperator struct {
	ctx       mixer.Context
	logger    mixer.Logger
	acker     mixer.ACKer
	next      *emit.Deferred
	evaluator *Evaluator
}

func (o *scriptOperator) Open(ctx mixer.Context) error {
	o.ctx = ctx
	o.logger = log.Ctx(o.ctx)
	o.acker = mixer.NewACKer()
	o.next = emit.NewDeferred()
	evaluator, err := NewEvaluator(o.ctx.Properties().GetString(ScriptProperty), nil)
	if err != nil {
		o.logger.Errorw("can't build script.", "err", err)
		return err
	}
	o.evaluator = evaluator
	return nil
}

func (o *scriptOperator) Close() error {
	o.acker.Close()
	return nil
}

func (o *scriptOperator) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{ScriptProperty}
}

func (o *scriptOperator) emit(event *mixer.Event) {
	var newEvent *mixer.Event
	err := o.evaluator.Eval(o.ctx.Ctx(), event, func(result *tengo.Compiled) (err error) {
		newEvent, err = fromTengoEvent(result.Get("event").Object(), event)
		return err
	})
	if err != nil {
		o.logger.Errorw("script failed, discarding event.", "event", event, "err", err)
		o.acker.OnACK(event, false)
		return
	}
	o.next.Emit(o.ctx.Done(), newEvent, nil)
}

func (o *scriptOperator) GenerateEmit(_ mixer.Context) mixer.Emit {
	return o.emit
}

func (o *scriptOperator) Collect(emitNext mixer.EmitNext) error {
	o.next.Set(emitNext)
	<-o.ctx.Done()
	return nil
}

func NewScript() mixer.Operator {
	return &scriptOperator{}
}

func init() {
	component.RegisterNewOperatorFunc("tengo-script", NewScript)
}
