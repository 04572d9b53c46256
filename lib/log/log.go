package log

import (
	"mixer/mixer"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type OutputEncoder string

const (
	JSONOutputEncoder    OutputEncoder = "json"
	ConsoleOutputEncoder OutputEncoder = "console"

	rootName = "mixer"
)

type Options struct {
	Level         string
	OutputEncoder OutputEncoder
	OutputPaths   []string
}

func DefaultOptions() *Options {
	return &Options{
		Level:         "info",
		OutputEncoder: JSONOutputEncoder,
		OutputPaths:   []string{"stdout"},
	}
}

func (o *Options) WithOutputEncoder(encoder OutputEncoder) *Options {
	o.OutputEncoder = encoder
	return o
}

func (o *Options) WithLevel(level string) *Options {
	o.Level = level
	return o
}

func (o *Options) WithOutputPaths(paths ...string) *Options {
	o.OutputPaths = paths
	return o
}

var (
	mutex sync.RWMutex
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	root  = zap.NewNop().Sugar()
)

//Setup builds the root logger, every Named or Ctx logger created afterwards derives from it
func Setup(options *Options) {
	if err := SetLevel(options.Level); err != nil {
		panic(err)
	}
	config := zap.NewProductionConfig()
	config.Level = level
	config.Encoding = string(options.OutputEncoder)
	config.OutputPaths = options.OutputPaths
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	if options.OutputEncoder == ConsoleOutputEncoder {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := config.Build()
	if err != nil {
		panic(errors.WithMessage(err, "can't build logger"))
	}
	mutex.Lock()
	defer mutex.Unlock()
	root = logger.Named(rootName).Sugar()
}

//SetLevel changes the level of all loggers at runtime
func SetLevel(lvl string) error {
	if lvl == "" {
		return nil
	}
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return errors.WithMessagef(err, "unknown log level %s", lvl)
	}
	return nil
}

func Named(name string) *zap.SugaredLogger {
	mutex.RLock()
	defer mutex.RUnlock()
	return root.Named(name)
}

//Ctx returns logger named after the component context
func Ctx(ctx mixer.Context) *zap.SugaredLogger {
	if ctx.Name() == "" {
		return Named("runtime")
	}
	return Named(ctx.Name())
}
