package mixing

import (
	"time"
)

// Packet is a single record waiting to be mixed with the others sharing its Key.
type Packet struct {
	// Key is the grouping key (signature) deciding which window the packet joins.
	Key string `json:"key"`
	// Origin identifies the emitter of the packet, used only for duplicate detection.
	Origin string `json:"origin"`
	// Time is the arrival time, set by the queue when empty.
	Time time.Time `json:"time"`
	// Body is passed through untouched.
	Body []byte `json:"body"`
}

// Batch is everything buffered for Key when its window closed. Packet order is
// unspecified.
type Batch struct {
	Key     string
	Packets []Packet
	// Pushout is set when the batch was forced out by a repeated origin.
	Pushout bool
}

// Subscriber receives closed windows. It is called with the queue locked and
// must not call back into the same Queue.
type Subscriber func(batch Batch)

// Source is an upstream producer of packets. Handlers registered through
// Subscribe must be invoked synchronously for every packet.
type Source interface {
	Subscribe(handler func(packet Packet) error)
}
