package replicating

import (
	"fmt"
	"mixer/lib/emit"
	"mixer/lib/properties"
	"mixer/mixer"
	"mixer/pkg/constant"
	"regexp"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	OutputsProperty = properties.NewRequiredProperty[[]string]("outputs", "replicating select outputs")
	ErrEmitNextNil  = fmt.Errorf("replicating emit next can't be nil")
)

//Generator copies every event to all components whose name matches one of the outputs
func Generator(ctx mixer.Context, allEmitGenerator map[mixer.Context]mixer.EmitGenerator, topology map[mixer.Context][]mixer.Context) mixer.EmitNext {
	var emitNextSlice []mixer.Emit
	for _, emitNextRegexp := range ctx.Properties().GetStringSlice(OutputsProperty) {
		compile, err := regexp.Compile(emitNextRegexp)
		if err != nil {
			panic(fmt.Sprintf("output %s can't compile.", emitNextRegexp))
		}
		for _, _ctx := range sortedContexts(allEmitGenerator) {
			if _ctx == ctx || !compile.MatchString(_ctx.Name()) {
				continue
			}
			emitNextSlice = append(emitNextSlice, allEmitGenerator[_ctx](ctx))
			topology[_ctx] = append(topology[_ctx], ctx)
		}
	}
	if len(emitNextSlice) == 0 {
		panic(errors.WithMessage(ErrEmitNextNil, ctx.Name()))
	}

	mode := ctx.Properties().Global().GetString(constant.RuntimeModeProperty)
	switch mode {
	case mixer.Snapshot:
		return func(event *mixer.Event, handler mixer.ACKHandler) {
			for _, emit := range emitNextSlice {
				emit(event)
			}
			if handler != nil {
				handler()
			}
		}
	case mixer.ACK:
		return func(event *mixer.Event, handler mixer.ACKHandler) {
			if handler != nil {
				var acked int64
				event.Private = map[string]any{mixer.PrivateACKHandler: mixer.ACKHandler(func() {
					if atomic.AddInt64(&acked, 1) == int64(len(emitNextSlice)) {
						handler()
					}
				})}
			}
			for _, emit := range emitNextSlice {
				emit(event)
			}
		}
	default:
		panic(errors.WithMessage(constant.ErrUnsupportedMode, mode))
	}
}

func sortedContexts(allEmitGenerator map[mixer.Context]mixer.EmitGenerator) []mixer.Context {
	contexts := make([]mixer.Context, 0, len(allEmitGenerator))
	for ctx := range allEmitGenerator {
		contexts = append(contexts, ctx)
	}
	sort.Slice(contexts, func(i, j int) bool {
		return contexts[i].Name() < contexts[j].Name()
	})
	return contexts
}

func init() {
	emit.RegisterEmitNextGeneratorFunc("replicating", func() mixer.EmitNextGenerator {
		return Generator
	})
}
