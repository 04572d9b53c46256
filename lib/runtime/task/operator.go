package task

import (
	"mixer/lib/runtime/checkpoint"
	"mixer/mixer"

	"go.uber.org/multierr"
)

type OperatorTask struct {
	mixer.Operator
	Ctx         mixer.Context
	EmitNext    mixer.EmitNext
	Checkpoints *checkpoint.Store
}

func (o *OperatorTask) Start() error {
	if err := o.Open(o.Ctx); err != nil {
		return err
	}
	if err := restore(o.Checkpoints, o.Ctx, o.Operator); err != nil {
		return multierr.Append(err, o.Operator.Close())
	}
	return nil
}

func (o *OperatorTask) Run() error {
	if err := o.Collect(o.EmitNext); err != nil {
		return multierr.Append(err, closeAndSave(o.Checkpoints, o.Ctx, o.Operator))
	}
	return closeAndSave(o.Checkpoints, o.Ctx, o.Operator)
}
