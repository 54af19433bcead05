// Package bus is the coordination channel between the fetch queue, fetch
// units, the bulk downloader and remote observers.
//
// A Bus is created once per reading session and injected into every
// component that needs it. Dispatch is synchronous on the publisher's
// goroutine, in subscription order, with no ordering guarantee across
// different topics.
package bus

import (
	"sync"
)

// Topic names an event stream.
type Topic string

// Event is implemented by every payload published on a Bus. The topic must
// be derivable from the zero value so typed subscriptions can be keyed.
type Event interface {
	Topic() Topic
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Bus is a typed publish/subscribe service.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID uint64
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers fn for every event of type E published on b.
// The returned function removes the subscription; calling it twice is harmless.
func Subscribe[E Event](b *Bus, fn func(E)) (cancel func()) {
	var zero E
	topic := zero.Topic()
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{
		id: id,
		fn: func(e Event) {
			if ev, ok := e.(E); ok {
				fn(ev)
			}
		},
	})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

// Publish delivers e to every subscriber of its topic. Handlers run without
// the bus lock held, so they may publish or subscribe themselves.
func Publish[E Event](b *Bus, e E) {
	b.mu.RLock()
	subs := b.subs[e.Topic()]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(e)
	}
}

// Count returns the number of subscriptions on topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Reset drops every subscription.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Topic][]subscription)
}

func (b *Bus) unsubscribe(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
