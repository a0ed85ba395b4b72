package inbox

import (
	"slices"
	"sync"

	"github.com/colonyops/inbox/internal/core/notify"
)

// Subscriber is a callback invoked when a notification arrives.
type Subscriber func(notify.Notification)

// Bus is a synchronous in-process arrival bus. The Store publishes every
// new unread notification; subscribers must return quickly and hand slow work
// to their own goroutine.
type Bus struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: map[int]Subscriber{}}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Publish dispatches n to all subscribers in registration order.
func (b *Bus) Publish(n notify.Notification) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	subs := make([]Subscriber, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, b.subscribers[id])
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}
