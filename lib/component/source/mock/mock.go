package mock

import (
	"fmt"
	"mixer/lib/component"
	"mixer/lib/properties"
	"mixer/mixer"
	"time"
)

var (
	IntervalProperty = properties.NewProperty[int]("interval", "generate record interval in milliseconds", 100)
	KeysProperty     = properties.NewProperty[int]("keys", "number of distinct identifiers to rotate through", 10)
	OriginsProperty  = properties.NewProperty[int]("origins", "number of distinct origins to rotate through", 3)
	LimitProperty    = properties.NewProperty[int]("limit", "stop generating after this many records, 0 never stops", 0)
)

//source generates packets for demos and tests, identifier and origin rotate independently
type source struct {
	ctx      mixer.Context
	interval time.Duration
	keys     int
	origins  int
	limit    int
}

func (s *source) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{IntervalProperty, KeysProperty, OriginsProperty, LimitProperty}
}

func (s *source) record(seq int) *mixer.Event {
	return &mixer.Event{
		Meta: map[string]any{"source": s.ctx.Name()},
		Message: map[string]any{
			"identifier": map[string]any{"value": fmt.Sprintf("key-%d", seq%s.keys)},
			"origin":     fmt.Sprintf("origin-%d", seq%s.origins),
			"seq":        seq,
		},
		Time: time.Now(),
	}
}

func (s *source) Collect(emitNext mixer.EmitNext) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for seq := 0; s.limit <= 0 || seq < s.limit; seq++ {
		select {
		case <-s.ctx.Done():
			//source close
			return nil
		case <-ticker.C:
			emitNext(s.record(seq), nil)
		}
	}
	//keep the pipeline running until it is stopped
	<-s.ctx.Done()
	return nil
}

func (s *source) Open(ctx mixer.Context) error {
	s.ctx = ctx
	s.interval = time.Duration(ctx.Properties().GetInt(IntervalProperty)) * time.Millisecond
	if s.interval <= 0 {
		s.interval = time.Millisecond
	}
	s.keys = ctx.Properties().GetInt(KeysProperty)
	if s.keys <= 0 {
		s.keys = 1
	}
	s.origins = ctx.Properties().GetInt(OriginsProperty)
	if s.origins <= 0 {
		s.origins = 1
	}
	s.limit = ctx.Properties().GetInt(LimitProperty)
	return nil
}

func (s *source) Close() error {
	return nil
}

//New uses for test only
func New() mixer.Source {
	return &source{}
}

func init() {
	component.RegisterNewSourceFunc("mock", New)
}
