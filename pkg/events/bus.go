// Package events implements a multi-producer single-consumer event bus:
// a typed channel of progress/output/completion events
// consumed by an external UI or test harness. Sends are always
// non-blocking; with no consumer attached, events are discarded rather
// than backing up a producer.
package events

import "github.com/ternarybob/merlin/pkg/core"

// Bus fans events from many producers to at most one active consumer.
// Grounded on pkg/agent's original loop controller, which used a plain
// buffered channel for progress signaling; this generalizes that to a
// shared, multi-sender channel instead of a single owner. There is no
// attach or detach call: the consumer is whoever drains Events().
type Bus struct {
	ch chan core.Event
}

// New constructs a Bus with the given channel buffer depth. A small buffer
// absorbs bursts without making Send block; Send still never blocks once
// the buffer is full — it drops the event instead.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{ch: make(chan core.Event, buffer)}
}

// Send delivers an event to the attached consumer, if any. It never
// blocks: if the channel is unbuffered-full or there is no consumer
// draining it, the event is silently discarded.
func (b *Bus) Send(e core.Event) {
	select {
	case b.ch <- e:
	default:
	}
}

// Events returns the receive-only channel a consumer drains. Multiple
// concurrent readers compete for the same events (true MPSC fan-in,
// single logical consumer); callers wanting independent streams should
// each construct their own Bus and have producers Send to all of them.
func (b *Bus) Events() <-chan core.Event {
	return b.ch
}

// Emitter is the narrow interface step executors and the index component
// depend on, so they can be unit-tested against a fake without pulling in
// the full Bus.
type Emitter interface {
	Send(core.Event)
}

// Discard is a no-op Emitter, useful as a default when no event channel is
// supplied (never nil-checking at every call site).
type Discard struct{}

func (Discard) Send(core.Event) {}
