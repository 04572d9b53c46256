package mixing

import (
	"container/list"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

// Window is the open interval of a key, it may close once Deadline has passed.
type Window struct {
	Key      string
	Deadline time.Time
}

// Registry is the FIFO of open windows, oldest first. It holds at most one
// window per key and is not safe for concurrent use.
type Registry struct {
	clock   clock.PassiveClock
	windows *list.List
	index   map[string]*list.Element
}

func NewRegistry(c clock.PassiveClock) *Registry {
	return &Registry{
		clock:   c,
		windows: list.New(),
		index:   map[string]*list.Element{},
	}
}

func (r *Registry) IsKnown(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Add appends a window for key closing delay from now.
func (r *Registry) Add(key string, delay time.Duration) error {
	if r.IsKnown(key) {
		return errors.WithMessagef(ErrWindowExists, "key %s", key)
	}
	r.index[key] = r.windows.PushBack(Window{Key: key, Deadline: r.clock.Now().Add(delay)})
	return nil
}

// Refresh moves the window of key to the back with a new deadline, adding it
// when missing.
func (r *Registry) Refresh(key string, delay time.Duration) {
	r.Remove(key)
	r.index[key] = r.windows.PushBack(Window{Key: key, Deadline: r.clock.Now().Add(delay)})
}

func (r *Registry) Peek() (Window, bool) {
	front := r.windows.Front()
	if front == nil {
		return Window{}, false
	}
	return front.Value.(Window), true
}

func (r *Registry) Pop() (Window, bool) {
	front := r.windows.Front()
	if front == nil {
		return Window{}, false
	}
	window := r.windows.Remove(front).(Window)
	delete(r.index, window.Key)
	return window, true
}

func (r *Registry) Remove(key string) bool {
	element, ok := r.index[key]
	if !ok {
		return false
	}
	r.windows.Remove(element)
	delete(r.index, key)
	return true
}

func (r *Registry) Len() int {
	return r.windows.Len()
}
