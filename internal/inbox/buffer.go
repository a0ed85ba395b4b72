package inbox

import (
	"sync"

	"github.com/colonyops/inbox/internal/core/notify"
)

// DefaultBufferLimit caps queued arrivals awaiting delivery.
const DefaultBufferLimit = 100

// ArrivalBuffer queues arrivals and emits coalesced drain signals.
type ArrivalBuffer struct {
	mu            sync.Mutex
	notifications []notify.Notification
	limit         int
	dropped       int
	signal        chan struct{}
}

// NewArrivalBuffer creates a buffer holding at most limit arrivals. When full
// the oldest arrival is discarded.
func NewArrivalBuffer(limit int) *ArrivalBuffer {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	return &ArrivalBuffer{
		notifications: make([]notify.Notification, 0),
		limit:         limit,
		signal:        make(chan struct{}, 1),
	}
}

// Push appends a notification and emits a non-blocking drain signal.
func (b *ArrivalBuffer) Push(n notify.Notification) {
	b.mu.Lock()
	if len(b.notifications) >= b.limit {
		b.notifications = b.notifications[1:]
		b.dropped++
	}
	b.notifications = append(b.notifications, n)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Drain returns all buffered notifications and clears the buffer.
func (b *ArrivalBuffer) Drain() []notify.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.notifications) == 0 {
		return nil
	}

	out := make([]notify.Notification, len(b.notifications))
	copy(out, b.notifications)
	b.notifications = b.notifications[:0]
	return out
}

// Dropped returns how many arrivals were discarded because the buffer was full.
func (b *ArrivalBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Signal fires at least once after any Push. Several pushes may share one signal.
func (b *ArrivalBuffer) Signal() <-chan struct{} {
	return b.signal
}
