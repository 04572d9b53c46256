package mixing

import (
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const (
	DefaultMixingDelay = 25 * time.Millisecond
	defaultName        = "default"
)

type Options struct {
	// mixingDelay is the window length.
	mixingDelay time.Duration
	// idleInterval is how long the scheduler sleeps while no window is open.
	idleInterval time.Duration
	// signatureSpecificDelay honours the deadline of each window.
	signatureSpecificDelay bool
	// allowDuplicates lets repeated origins accumulate instead of pushing out.
	allowDuplicates bool
	name            string
	clock           clock.Clock
	logger          *zap.SugaredLogger
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		mixingDelay: DefaultMixingDelay,
		name:        defaultName,
		clock:       clock.RealClock{},
	}
}

// WithMixingDelay sets the window length, non positive values keep the default.
func WithMixingDelay(delay time.Duration) Option {
	return func(o *Options) {
		if delay > 0 {
			o.mixingDelay = delay
		}
	}
}

// WithIdleInterval sets the poll period used while no window is open. It
// defaults to the mixing delay.
func WithIdleInterval(interval time.Duration) Option {
	return func(o *Options) {
		if interval > 0 {
			o.idleInterval = interval
		}
	}
}

func WithSignatureSpecificDelay(enabled bool) Option {
	return func(o *Options) {
		o.signatureSpecificDelay = enabled
	}
}

func WithAllowDuplicates(enabled bool) Option {
	return func(o *Options) {
		o.allowDuplicates = enabled
	}
}

// WithName labels the metrics and logs of the queue.
func WithName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.name = name
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.clock = c
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}
