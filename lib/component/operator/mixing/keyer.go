package mixing

import (
	"context"
	"mixer/lib/component/operator/tengo"
	"mixer/mixer"
	"strings"

	_tengo "github.com/d5/tengo/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

//Keyer extracts the grouping key and the origin of an event
type Keyer interface {
	Keys(ctx context.Context, event *mixer.Event) (key string, origin string, err error)
}

type pathKeyer struct {
	key    []string
	origin []string
}

func newPathKeyer(key, origin string) *pathKeyer {
	return &pathKeyer{key: splitPath(key), origin: splitPath(origin)}
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func (p *pathKeyer) Keys(_ context.Context, event *mixer.Event) (string, string, error) {
	key, err := lookup(event, p.key)
	if err != nil {
		return "", "", errors.WithMessage(err, "can't read key")
	}
	origin, err := lookup(event, p.origin)
	if err != nil {
		return "", "", errors.WithMessage(err, "can't read origin")
	}
	return key, origin, nil
}

//lookup walks path through the event, a missing field reads as empty
func lookup(event *mixer.Event, path []string) (string, error) {
	var value any
	switch path[0] {
	case "message":
		value = event.Message
	case "meta":
		value = event.Meta
	default:
		return "", errors.Errorf("path must start with message or meta, got %s", path[0])
	}
	for _, field := range path[1:] {
		if value == nil {
			return "", nil
		}
		fields, err := cast.ToStringMapE(value)
		if err != nil {
			return "", errors.WithMessagef(err, "field %s", field)
		}
		value = fields[field]
	}
	if value == nil {
		return "", nil
	}
	return cast.ToStringE(value)
}

//NewKeyer runs script when it is set, otherwise reads the key and origin paths
func NewKeyer(script, key, origin string) (Keyer, error) {
	if script != "" {
		scriptKeyer, err := newScriptKeyer(script)
		if err != nil {
			return nil, errors.WithMessage(err, "can't build key script")
		}
		return scriptKeyer, nil
	}
	return newPathKeyer(key, origin), nil
}

type scriptKeyer struct {
	evaluator *tengo.Evaluator
}

func newScriptKeyer(script string) (*scriptKeyer, error) {
	evaluator, err := tengo.NewEvaluator(script, map[string]_tengo.Object{
		"key":    &_tengo.String{Value: ""},
		"origin": &_tengo.String{Value: ""},
	})
	if err != nil {
		return nil, err
	}
	return &scriptKeyer{evaluator: evaluator}, nil
}

func (s *scriptKeyer) Keys(ctx context.Context, event *mixer.Event) (key string, origin string, err error) {
	err = s.evaluator.Eval(ctx, event, func(result *_tengo.Compiled) error {
		if key, err = cast.ToStringE(result.Get("key").Value()); err != nil {
			return errors.WithMessage(err, "key is not a string")
		}
		if origin, err = cast.ToStringE(result.Get("origin").Value()); err != nil {
			return errors.WithMessage(err, "origin is not a string")
		}
		return nil
	})
	return key, origin, err
}
