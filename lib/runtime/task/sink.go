package task

import (
	"mixer/lib/runtime/checkpoint"
	"mixer/mixer"

	"go.uber.org/multierr"
)

type SinkTask struct {
	mixer.Sink
	Ctx         mixer.Context
	Checkpoints *checkpoint.Store
}

func (s *SinkTask) Start() error {
	if err := s.Open(s.Ctx); err != nil {
		return err
	}
	if err := restore(s.Checkpoints, s.Ctx, s.Sink); err != nil {
		return multierr.Append(err, s.Sink.Close())
	}
	return nil
}

func (s *SinkTask) Run() error {
	//Sink does not block, so wait
	<-s.Ctx.Done()
	return closeAndSave(s.Checkpoints, s.Ctx, s.Sink)
}
