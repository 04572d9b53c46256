package tengo

import (
	"fmt"
	"mixer/lib/component"
	"mixer/lib/emit"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
)

var (
	ConditionProperty = properties.NewRequiredProperty[string]("condition", "condition tengo script")
)

const conditionResult = "__res__"

type filterOperator struct {
	ctx       mixer.Context
	logger    mixer.Logger
	acker     mixer.ACKer
	next      *emit.Deferred
	evaluator *Evaluator
}

func (f *filterOperator) Open(ctx mixer.Context) error {
	f.ctx = ctx
	f.logger = log.Ctx(f.ctx)
	f.acker = mixer.NewACKer()
	f.next = emit.NewDeferred()
	condition := strings.TrimSpace(f.ctx.Properties().GetString(ConditionProperty))
	evaluator, err := NewEvaluator(fmt.Sprintf("%s := (%s)", conditionResult, condition), nil)
	if err != nil {
		f.logger.Errorw("can't build condition.", "err", err)
		return err
	}
	f.evaluator = evaluator
	return nil
}

func (f *filterOperator) Close() error {
	f.acker.Close()
	return nil
}

func (f *filterOperator) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{ConditionProperty}
}

func (f *filterOperator) emit(event *mixer.Event) {
	var pass bool
	err := f.evaluator.Eval(f.ctx.Ctx(), event, func(result *tengo.Compiled) error {
		value, ok := result.Get(conditionResult).Value().(bool)
		if !ok {
			return errors.New("condition result is not bool")
		}
		pass = value
		return nil
	})
	if err != nil {
		f.logger.Errorw("condition failed, discarding event.", "event", event, "err", err)
		f.acker.OnACK(event, false)
		return
	}
	if !pass {
		f.logger.Debugw("filter event.", "event", event)
		f.acker.OnACK(event, false)
		return
	}
	f.next.Emit(f.ctx.Done(), event, nil)
}

func (f *filterOperator) GenerateEmit(_ mixer.Context) mixer.Emit {
	return f.emit
}

func (f *filterOperator) Collect(emitNext mixer.EmitNext) error {
	f.next.Set(emitNext)
	<-f.ctx.Done()
	return nil
}

func NewFilter() mixer.Operator {
	return &filterOperator{}
}

func init() {
	component.RegisterNewOperatorFunc("tengo-filter", NewFilter)
}
