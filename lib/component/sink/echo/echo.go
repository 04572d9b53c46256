package echo

import (
	"mixer/lib/component"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"
	"sync"

	"github.com/eapache/queue"
)

var (
	BatchSizeProperty = properties.NewProperty[int]("batch", "echo sink echo batch size", 1)
	TypeProperty      = properties.NewProperty[string]("echo", "echo type, like info debug", "info")
)

type sink struct {
	ctx       mixer.Context
	logger    mixer.Logger
	acker     mixer.ACKer
	batch     int
	buffer    *queue.Queue
	bufferMux sync.Mutex
	echoFunc  func(format string, args ...interface{})
}

func (s *sink) GenerateEmit(_ mixer.Context) mixer.Emit {
	return func(event *mixer.Event) {
		s.bufferMux.Lock()
		defer s.bufferMux.Unlock()
		s.buffer.Add(event)
		if s.buffer.Length() >= s.batch {
			s.flush()
		}
	}
}

//flush echoes everything buffered, bufferMux must be held
func (s *sink) flush() {
	for s.buffer.Length() > 0 {
		_event := s.buffer.Remove().(*mixer.Event)
		s.echoFunc("%+v", _event)
		s.acker.OnACK(_event, true)
	}
}

func (s *sink) Open(ctx mixer.Context) error {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	s.acker = mixer.NewACKer()
	s.batch = ctx.Properties().GetInt(BatchSizeProperty)
	if s.batch <= 0 {
		s.batch = 1
	}
	s.buffer = queue.New()
	switch echoType := ctx.Properties().GetString(TypeProperty); echoType {
	case "debug":
		s.echoFunc = s.logger.Debugf
	case "warn":
		s.echoFunc = s.logger.Warnf
	case "error":
		s.echoFunc = s.logger.Errorf
	case "info":
		s.echoFunc = s.logger.Infof
	default:
		s.logger.Warnf("unknown echo type %s, use info", echoType)
		s.echoFunc = s.logger.Infof
	}
	return nil
}

func (s *sink) Close() error {
	s.bufferMux.Lock()
	defer s.bufferMux.Unlock()
	s.flush()
	s.acker.Close()
	return nil
}

func (s *sink) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{BatchSizeProperty, TypeProperty}
}

//New uses for test only
func New() mixer.Sink {
	return &sink{}
}

func init() {
	component.RegisterNewSinkFunc("echo", New)
}
