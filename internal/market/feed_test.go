package market

import (
	"testing"
)

func TestFeedDeliversToAllSubscribers(t *testing.T) {
	f := NewFeed()
	a := f.Subscribe()
	b := f.Subscribe()

	f.Publish(ListingEndedEvent{ListingID: 7})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			ended, ok := ev.(ListingEndedEvent)
			if !ok || ended.ListingID != 7 {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestFeedDropsForSlowSubscriber(t *testing.T) {
	f := NewFeed()
	slow := f.Subscribe()

	// Fill the subscriber's buffer and then some; Publish must not block.
	for i := 0; i < 300; i++ {
		f.Publish(ListingEndedEvent{ListingID: uint64(i)})
	}

	received := 0
	for {
		select {
		case <-slow:
			received++
			continue
		default:
		}
		break
	}
	if received != 256 {
		t.Fatalf("expected exactly the buffered 256 events, got %d", received)
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	f := NewFeed()
	sub := f.Subscribe()

	f.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or deliver.
	f.Publish(ListingEndedEvent{ListingID: 1})
}

func TestEventTopicsAreStable(t *testing.T) {
	if (ListEvent{}).Topic() == (ProposeEvent{}).Topic() {
		t.Fatal("distinct events must have distinct topics")
	}
	if (ListEvent{}).Topic() != (ListEvent{}).Topic() {
		t.Fatal("topic must be stable across instances")
	}
}
