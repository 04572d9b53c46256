package mixer

import (
	_c "context"
)

//Context is handed to every component at Open. It is named after the
//component's config section (source.kafka, operator.mixing, sink.out), carries
//that section's properties and is cancelled when the pipeline stops.
type Context interface {
	//Ctx is origin context
	Ctx() _c.Context
	//Name is current context name, like operator.mixing
	Name() string
	Named(string) Context
	Properties() Properties

	//Store and Load is kv Storage function
	Store(key string, value interface{})
	Load(key string) (interface{}, bool)

	Done() <-chan struct{}
	Cancel()
}
