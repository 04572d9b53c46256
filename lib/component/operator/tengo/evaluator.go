package tengo

import (
	"context"
	"mixer/mixer"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/pkg/errors"
)

//Evaluator runs one compiled script against events. The script sees the
//event as `event` and may assign any of the declared variables.
type Evaluator struct {
	mutex     sync.Mutex
	compiled  *tengo.Compiled
	variables map[string]tengo.Object
}

//NewEvaluator compiles src, variables maps each extra script variable to its initial value
func NewEvaluator(src string, variables map[string]tengo.Object) (*Evaluator, error) {
	script := tengo.NewScript([]byte(src))
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	if err := script.Add("event", emptyEvent); err != nil {
		return nil, errors.WithMessage(err, "can't add event variable to script")
	}
	for name, value := range variables {
		if err := script.Add(name, value); err != nil {
			return nil, errors.WithMessagef(err, "can't add %s variable to script", name)
		}
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, errors.WithMessage(err, "can't compile script")
	}
	return &Evaluator{compiled: compiled, variables: variables}, nil
}

//Eval runs the script for event and hands the result to read before the next run may start
func (e *Evaluator) Eval(ctx context.Context, event *mixer.Event, read func(result *tengo.Compiled) error) error {
	tengoEvent, err := toTengoEvent(event)
	if err != nil {
		return err
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if err = e.compiled.Set("event", tengoEvent); err != nil {
		return errors.WithMessage(err, "can't set event variable")
	}
	for name, value := range e.variables {
		if err = e.compiled.Set(name, value); err != nil {
			return errors.WithMessagef(err, "can't reset %s variable", name)
		}
	}
	if err = e.compiled.RunContext(ctx); err != nil {
		return errors.WithMessage(err, "can't run script")
	}
	return read(e.compiled)
}
