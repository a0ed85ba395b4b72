package inbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/data/stream"
)

// fakeChannel is a push connection driven by the test.
type fakeChannel struct {
	msgs   chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		msgs:   make(chan []byte, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Next(ctx context.Context) ([]byte, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, &notify.StreamError{Err: errors.New("closed")}
	case <-ctx.Done():
		return nil, &notify.StreamError{Err: ctx.Err()}
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// drop simulates the server ending the connection.
func (c *fakeChannel) drop() {
	c.errs <- &notify.StreamError{Err: errors.New("connection reset")}
}

// fakeDialer answers dials from a script. A nil entry opens a new channel.
// Once the script is empty every dial returns fallback (nil opens a channel).
type fakeDialer struct {
	mu       sync.Mutex
	script   []error
	fallback error
	dials    int
	channels []*fakeChannel
}

var _ stream.Dialer = (*fakeDialer)(nil)

func (d *fakeDialer) Dial(ctx context.Context) (stream.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++

	err := d.fallback
	if len(d.script) > 0 {
		err = d.script[0]
		d.script = d.script[1:]
	}
	if err != nil {
		return nil, err
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) Channel(i int) *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.channels) {
		return nil
	}
	return d.channels[i]
}

func (d *fakeDialer) Channels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

// manualScheduler records reconnect timers and fires them on demand.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) Schedule(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

// Fire runs timer i even if it was stopped, like a late time.AfterFunc.
func (s *manualScheduler) Fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	s.mu.Unlock()
	t.fn()
}

func (s *manualScheduler) Stopped(i int) bool {
	s.mu.Lock()
	t := s.timers[i]
	s.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
