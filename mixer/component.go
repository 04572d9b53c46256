package mixer

//Delivery modes of global.mode. In ack mode a source learns an event is done
//only when every sink released it, in snapshot mode at send time and
//progress is kept by Stateful snapshots.
const (
	ACK      = "ack"
	Snapshot = "snapshot"
)

//Emit hands an event to a downstream operator or sink
type Emit func(event *Event)

//EmitGenerator is how operators and sinks expose their input, once per upstream
type EmitGenerator func(upstreamCtx Context) Emit

//EmitNext send event to next component,
//handler is called at ack time in ACK mode or send time in Snapshot mode
type EmitNext func(event *Event, handler ACKHandler)

//EmitNextGenerator generate EmitNext from all registered EmitGenerator
type EmitNextGenerator func(ctx Context, allEmitGenerator map[Context]EmitGenerator, topology map[Context][]Context) EmitNext

//Component is what the runtime builds from a config section. Sinks open
//first and sources last, every component is closed once its task ends.
type Component interface {
	//Open initialize the component
	Open(ctx Context) error
	//Close cleaning up after the context done.
	Close() error
	//PropertiesDef return Component properties defend
	PropertiesDef() PropertiesDef
}

type Source interface {
	Component
	//Collect should block caller,and wait for ctx done or source done.
	Collect(emitNext EmitNext) error
}

//Operator receives events through the Emit returned by GenerateEmit and
//sends its own results to the EmitNext given to Collect.
type Operator interface {
	Component
	//Collect should block caller,and wait for ctx done or operator done.
	Collect(emitNext EmitNext) error
	//GenerateEmit is a method to receive events
	GenerateEmit(upstreamCtx Context) Emit
}

type Sink interface {
	Component
	//GenerateEmit is a method to receive events
	GenerateEmit(upstreamCtx Context) Emit
}

//NewSourceFunc, NewSinkFunc and NewOperatorFunc are registered by type name
//in lib/component and called once per configured section.
type NewSourceFunc func() Source
type NewSinkFunc func() Sink
type NewOperatorFunc func() Operator

type NewEmitNextGeneratorFunc func() EmitNextGenerator
