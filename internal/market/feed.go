package market

import (
	"log"
	"sync"
)

// Feed is a many-to-many hub that distributes market events to subscribers.
// Publishing never blocks: slow subscribers get events dropped so an engine's
// critical section is never held hostage by a consumer.
type Feed struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe returns a buffered channel that receives every published event.
// The caller must drain the channel to avoid dropped events.
func (f *Feed) Subscribe() <-chan Event {
	ch := make(chan Event, 256)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Passing a
// channel that was never subscribed is a no-op.
func (f *Feed) Unsubscribe(sub <-chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range f.subs {
		if (<-chan Event)(ch) == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish delivers an event to all subscribers, dropping it for any whose
// buffer is full.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("feed: dropping %s event for slow subscriber", ev.Kind())
		}
	}
}
