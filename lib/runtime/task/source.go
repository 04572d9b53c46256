package task

import (
	"mixer/lib/runtime/checkpoint"
	"mixer/mixer"

	"go.uber.org/multierr"
)

type SourceTask struct {
	mixer.Source
	Ctx         mixer.Context
	EmitNext    mixer.EmitNext
	Name        string
	Checkpoints *checkpoint.Store
}

func (s *SourceTask) Start() error {
	if err := s.Open(s.Ctx); err != nil {
		return err
	}
	if err := restore(s.Checkpoints, s.Ctx, s.Source); err != nil {
		return multierr.Append(err, s.Source.Close())
	}
	return nil
}

//Run blocks until the source is drained or the context is done, then closes it
func (s *SourceTask) Run() error {
	if err := s.Collect(s.EmitNext); err != nil {
		return multierr.Append(err, closeAndSave(s.Checkpoints, s.Ctx, s.Source))
	}
	return closeAndSave(s.Checkpoints, s.Ctx, s.Source)
}
