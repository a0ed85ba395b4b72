package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/inbox/internal/core/logging"
	"github.com/colonyops/inbox/internal/core/notify"
)

// DefaultDeliveryTimeout bounds a single desktop notification or sound cue.
const DefaultDeliveryTimeout = 5 * time.Second

// Notifier is a permission gated desktop notification API.
type Notifier interface {
	Permitted() bool
	Notify(ctx context.Context, n notify.Notification) error
}

// SoundPlayer plays an audible cue.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// DeliverySink turns arrivals into local side effects. Every failure is
// logged and swallowed; nothing it does can block or fail the Store.
type DeliverySink struct {
	prefs   func() notify.Preferences
	buffer  *ArrivalBuffer
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	notifier Notifier
	sound    SoundPlayer
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDeliverySink creates a sink reading preferences from prefs on every
// delivery. notifier and sound may be nil.
func NewDeliverySink(prefs func() notify.Preferences, notifier Notifier, sound SoundPlayer, bufferLimit int) *DeliverySink {
	return &DeliverySink{
		prefs:    prefs,
		buffer:   NewArrivalBuffer(bufferLimit),
		timeout:  DefaultDeliveryTimeout,
		log:      logging.Component("delivery"),
		notifier: notifier,
		sound:    sound,
	}
}

// Attach subscribes the sink to bus. The returned function detaches it.
func (d *DeliverySink) Attach(bus *Bus) (detach func()) {
	return bus.Subscribe(d.buffer.Push)
}

// SetOutputs swaps the notifier and sound player, for example after a
// configuration reload.
func (d *DeliverySink) SetOutputs(notifier Notifier, sound SoundPlayer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifier, d.sound = notifier, sound
}

// Start runs delivery on its own goroutine until Stop or ctx is done.
func (d *DeliverySink) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
}

// Stop halts delivery and waits for the goroutine to exit. Queued arrivals
// are discarded.
func (d *DeliverySink) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *DeliverySink) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.buffer.Signal():
			for _, n := range d.buffer.Drain() {
				if ctx.Err() != nil {
					return
				}
				d.Deliver(ctx, n)
			}
		}
	}
}

// Deliver runs the side effects for one arrival according to the current
// preferences.
func (d *DeliverySink) Deliver(ctx context.Context, n notify.Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("id", n.ID).Str("panic", fmt.Sprint(r)).Msg("delivery panicked")
		}
	}()

	prefs := d.prefs()
	d.mu.Lock()
	notifier, sound := d.notifier, d.sound
	d.mu.Unlock()

	if prefs.BrowserNotifications && notifier != nil {
		if !notifier.Permitted() {
			d.log.Debug().Str("id", n.ID).Msg("desktop notifications not permitted")
		} else {
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			err := notifier.Notify(ctx, n)
			cancel()
			if err != nil {
				d.log.Warn().Err(err).Str("id", n.ID).Msg("desktop notification failed")
			}
		}
	}

	if prefs.SoundNotifications && sound != nil {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sound.Play(ctx)
		cancel()
		if err != nil {
			d.log.Warn().Err(err).Str("id", n.ID).Msg("sound cue failed")
		}
	}
}
