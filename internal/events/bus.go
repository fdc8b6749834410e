// Package events carries typed domain events between the custody core
// and independent consumers such as notification senders. Publishing is
// decoupled from delivery: subscribers run on their own goroutines and
// cannot block a state transition.
package events

import (
	"sync"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// Type identifies a kind of domain event.
type Type string

const (
	TransactionCreated     Type = "transaction_created"
	TransactionBroadcasted Type = "transaction_broadcasted"
	TransactionConfirmed   Type = "transaction_confirmed"
	TransactionFailed      Type = "transaction_failed"
	StakeOpened            Type = "stake_opened"
	StakeClosed            Type = "stake_closed"
)

// Event is one domain occurrence. Fields are populated as relevant for
// the event type; Amount is zero when not applicable.
type Event struct {
	Type          Type
	TransactionID string
	ChainTxID     string
	AccountID     string
	Amount        money.Amount
	Reason        string
	OccurredAt    time.Time
}

// Subscriber handles delivered events. Delivery is at-least-once from
// the subscriber's perspective; handlers must tolerate duplicates.
type Subscriber func(Event)

// Bus fans events out to subscribers registered per type or for all
// events.
type Bus struct {
	mu      sync.RWMutex
	byType  map[Type][]Subscriber
	allSubs []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{byType: make(map[Type][]Subscriber)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[t] = append(b.byType[t], sub)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, sub)
}

// Publish delivers the event asynchronously to every matching subscriber.
func (b *Bus) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.byType[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}
