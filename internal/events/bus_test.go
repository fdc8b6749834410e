package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToTypeAndAllSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var typed, all []Event
	done := make(chan struct{}, 2)

	bus.Subscribe(TransactionConfirmed, func(e Event) {
		mu.Lock()
		typed = append(typed, e)
		mu.Unlock()
		done <- struct{}{}
	})
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		all = append(all, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(Event{Type: TransactionConfirmed, TransactionID: "tx1", ChainTxID: "chain1"})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d not invoked", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(typed) != 1 || typed[0].TransactionID != "tx1" {
		t.Fatalf("typed subscriber got %+v", typed)
	}
	if len(all) != 1 {
		t.Fatalf("all subscriber got %+v", all)
	}
	if typed[0].OccurredAt.IsZero() {
		t.Fatalf("expected timestamp to be stamped on publish")
	}
}

func TestPublishSkipsUnrelatedTypes(t *testing.T) {
	bus := NewBus()

	called := make(chan Event, 1)
	bus.Subscribe(TransactionFailed, func(e Event) { called <- e })

	bus.Publish(Event{Type: TransactionConfirmed, TransactionID: "tx1"})

	select {
	case e := <-called:
		t.Fatalf("unexpected delivery: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
