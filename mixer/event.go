package mixer

import (
	"time"
)

//Event is the unit flowing from sources through operators to sinks.
//Sources decode packets into Message, the mixing operator emits one Event per
//closed window. Event is not thread safety.
type Event struct {
	Meta    map[string]any `json:"meta"`
	Message any            `json:"message"`
	Time    time.Time      `json:"time"`

	// for mixer private use
	Private map[string]any `json:"-"`
}

const (
	PrivateACKHandler = "$private_ack_handler"
)

//ACKHandler tells the upstream component an event is done with, for example
//so the kafka source can mark the record.
type ACKHandler func()

//ACKer releases events. Components call OnACK once per event they consume,
//ok=false when the event was dropped on an error.
type ACKer interface {
	OnACK(event *Event, ok bool)
	Close()
}

type simpleACKer struct{}

func (n *simpleACKer) OnACK(event *Event, _ bool) {
	if event.Private != nil {
		if ackHandler, ok := event.Private[PrivateACKHandler]; ok {
			if handler, ok := ackHandler.(ACKHandler); ok {
				handler()
			}
		}
	}
}

func (n *simpleACKer) Close() {}

func NewACKer() ACKer {
	return &simpleACKer{}
}
