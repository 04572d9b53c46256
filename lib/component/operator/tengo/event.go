package tengo

import (
	"fmt"
	"mixer/mixer"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/pkg/errors"
)

var (
	emptyTime  = time.Time{}
	emptyEvent = &eventObject{
		Meta:    &tengo.Map{Value: map[string]tengo.Object{}},
		Message: tengo.UndefinedValue,
		Time:    &tengo.Time{Value: emptyTime},
	}
)

//eventObject exposes an event to scripts as `event.meta`, `event.message` and `event.time`
type eventObject struct {
	tengo.ObjectImpl
	Meta    *tengo.Map
	Message tengo.Object
	Time    *tengo.Time
}

// TypeName returns the name of the type.
func (s *eventObject) TypeName() string {
	return "event"
}

func (s *eventObject) String() string {
	return "<event>"
}

func (s *eventObject) IsFalsy() bool {
	return s.Message.IsFalsy() && s.Meta.IsFalsy() && s.Time.IsFalsy()
}

func (s *eventObject) IndexGet(o tengo.Object) (tengo.Object, error) {
	strIdx, ok := tengo.ToString(o)
	if !ok {
		return nil, tengo.ErrInvalidIndexType
	}
	switch strIdx {
	case "meta":
		return s.Meta, nil
	case "message":
		return s.Message, nil
	case "time":
		return s.Time, nil
	default:
		return tengo.UndefinedValue, fmt.Errorf("unknown key %s", strIdx)
	}
}

func (s *eventObject) IndexSet(index, value tengo.Object) error {
	strIdx, ok := tengo.ToString(index)
	if !ok {
		return tengo.ErrInvalidIndexType
	}

	switch strIdx {
	case "meta":
		v, ok := value.(*tengo.Map)
		if !ok {
			return fmt.Errorf("meta only support map, but received is %s", value.TypeName())
		}
		s.Meta = v
	case "message":
		s.Message = value
	case "time":
		v, ok := value.(*tengo.Time)
		if !ok {
			return fmt.Errorf("time only support time.Time, but received is %s", value.TypeName())
		}
		s.Time = v
	default:
		return fmt.Errorf("unknown key %s", strIdx)
	}
	return nil
}

func toTengoEvent(event *mixer.Event) (tengo.Object, error) {
	tengoMessage, err := tengo.FromInterface(event.Message)
	if err != nil {
		return nil, errors.WithMessage(err, "message can't convert to tengo type.")
	}
	tengoMetaValue := make(map[string]tengo.Object, len(event.Meta))
	for key, value := range event.Meta {
		object, err := tengo.FromInterface(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "meta %s key can't convert to tengo type.", key)
		}
		tengoMetaValue[key] = object
	}
	return &eventObject{
		Meta:    &tengo.Map{Value: tengoMetaValue},
		Message: tengoMessage,
		Time:    &tengo.Time{Value: event.Time},
	}, nil
}

//fromTengoEvent copies a script result back, keeping the private fields of origin
func fromTengoEvent(object tengo.Object, origin *mixer.Event) (*mixer.Event, error) {
	_event, ok := object.(*eventObject)
	if !ok {
		return nil, errors.Errorf("script result is %s, not event", object.TypeName())
	}
	meta := make(map[string]any, len(_event.Meta.Value))
	for key, v := range _event.Meta.Value {
		meta[key] = tengo.ToInterface(v)
	}
	return &mixer.Event{
		Meta:    meta,
		Message: tengo.ToInterface(_event.Message),
		Time:    _event.Time.Value,
		Private: origin.Private,
	}, nil
}
