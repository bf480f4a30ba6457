package event

import "sync"

// Type identifies one of the lifecycle events the core publishes.
type Type string

const (
	Connect              Type = "connect"
	Disconnect           Type = "disconnect"
	NetworkChanged       Type = "networkChanged"
	AccountChanged       Type = "accountChanged"
	GasPriceUpdate       Type = "gasPriceUpdate"
	TransactionPending   Type = "transactionPending"
	TransactionConfirmed Type = "transactionConfirmed"
	Error                Type = "error"
)

// Event is one notification pushed to subscribers. Payload holds the
// event-specific data: the account for Connect/AccountChanged, the chain ID
// for NetworkChanged, a GasQuote for GasPriceUpdate, the transaction hash
// (TransactionPending) or receipt (TransactionConfirmed), and a
// human-readable message for Error.
type Event struct {
	Type    Type
	Payload any
}

// Bus is a simple publish/subscribe fan-out. Callbacks run synchronously on
// the publisher's goroutine; subscribers that need to do real work should
// hand off to their own.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for all events and returns an unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
