package emit

import (
	"mixer/mixer"
	"sync"
)

//Deferred holds the EmitNext of an operator. Upstream may deliver events
//before Collect hands the EmitNext over, Emit waits for it.
type Deferred struct {
	once  sync.Once
	ready chan struct{}
	next  mixer.EmitNext
}

func NewDeferred() *Deferred {
	return &Deferred{ready: make(chan struct{})}
}

//Set publishes next, calls after the first one are ignored
func (d *Deferred) Set(next mixer.EmitNext) {
	d.once.Do(func() {
		d.next = next
		close(d.ready)
	})
}

//Emit forwards event once next is set. It returns false, without calling
//handler, when done is closed first.
func (d *Deferred) Emit(done <-chan struct{}, event *mixer.Event, handler mixer.ACKHandler) bool {
	select {
	case <-d.ready:
	case <-done:
		return false
	}
	d.next(event, handler)
	return true
}
