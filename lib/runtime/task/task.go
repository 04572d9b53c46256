package task

import (
	"mixer/lib/runtime/checkpoint"
	"mixer/mixer"

	"go.uber.org/multierr"
)

//restore loads the last snapshot of stateful components, checkpoints may be nil
func restore(checkpoints *checkpoint.Store, ctx mixer.Context, component mixer.Component) error {
	stateful, ok := component.(mixer.Stateful)
	if checkpoints == nil || !ok {
		return nil
	}
	return checkpoints.Restore(ctx.Name(), stateful)
}

//closeAndSave closes component, then saves its snapshot
func closeAndSave(checkpoints *checkpoint.Store, ctx mixer.Context, component mixer.Component) error {
	err := component.Close()
	stateful, ok := component.(mixer.Stateful)
	if checkpoints == nil || !ok {
		return err
	}
	return multierr.Append(err, checkpoints.Save(ctx.Name(), stateful))
}
