package inbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/inbox/internal/core/logging"
	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/data/stream"
)

// DefaultStableWindow is how long a connection must stay open before a drop
// starts a fresh retry streak.
const DefaultStableWindow = 5 * time.Second

// Event is one decoded push notification. Seq increases by one for every
// event a Subscription delivers.
type Event struct {
	Notification notify.Notification
	Seq          uint64
}

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. It must not call f synchronously.
type Scheduler func(d time.Duration, f func()) Timer

// AfterFunc is the default Scheduler.
func AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SubscriptionConfig tunes a Subscription. Zero fields take defaults.
type SubscriptionConfig struct {
	Policy       Policy
	StableWindow time.Duration
	Schedule     Scheduler
	Now          func() time.Time
}

// Subscription owns at most one open push connection and hands decoded
// notifications to a single consumer channel. Transport failures are retried
// according to Policy; they never reach the consumer.
type Subscription struct {
	dialer       stream.Dialer
	policy       Policy
	stableWindow time.Duration
	schedule     Scheduler
	now          func() time.Time
	log          zerolog.Logger
	seq          atomic.Uint64

	// emitMu keeps hook calls in transition order without holding mu.
	emitMu  sync.Mutex
	onState func(notify.ConnectionState)

	mu     sync.Mutex
	state  notify.ConnectionState
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	timer  Timer
	events chan<- Event
}

func NewSubscription(dialer stream.Dialer, cfg SubscriptionConfig) *Subscription {
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.StableWindow <= 0 {
		cfg.StableWindow = DefaultStableWindow
	}
	if cfg.Schedule == nil {
		cfg.Schedule = AfterFunc
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Subscription{
		dialer:       dialer,
		policy:       cfg.Policy,
		stableWindow: cfg.StableWindow,
		schedule:     cfg.Schedule,
		now:          cfg.Now,
		log:          logging.Component("subscription"),
		state:        notify.ConnectionState{Status: notify.ConnIdle},
	}
}

// OnState registers a hook called after every state change, in order. The
// hook must not call back into the Subscription.
func (s *Subscription) OnState(fn func(notify.ConnectionState)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.onState = fn
}

// State returns the current connection state.
func (s *Subscription) State() notify.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the push stream and delivers events on events. It is a no-op
// while connecting, open or reconnecting. From idle or failed it starts a
// fresh retry streak.
func (s *Subscription) Connect(events chan<- Event) {
	s.mu.Lock()
	switch s.state.Status {
	case notify.ConnConnecting, notify.ConnOpen, notify.ConnReconnecting:
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.events = events
	s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnConnecting})

	go s.run(ctx, gen, 0, events)
}

// Disconnect stops the pending reconnect timer, cancels any dial in flight
// and closes the open channel. It is safe to call in any state and more than
// once. A timer that fires afterwards does nothing.
func (s *Subscription) Disconnect() {
	s.mu.Lock()
	s.gen++
	s.stopLocked()
	s.events = nil
	if s.state.Status == notify.ConnIdle {
		s.mu.Unlock()
		return
	}
	s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnIdle})
	s.log.Debug().Msg("push stream disconnected")
}

func (s *Subscription) run(ctx context.Context, gen uint64, attempt int, events chan<- Event) {
	ch, err := s.dialer.Dial(ctx)
	if err != nil {
		s.fail(gen, attempt, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = ch.Close()
		return
	}
	openedAt := s.now()
	s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnOpen})
	s.log.Info().Int("attempt", attempt).Msg("push stream open")

	err = s.read(ctx, ch, events)
	_ = ch.Close()
	if ctx.Err() != nil {
		return
	}

	streak := 0
	if s.now().Sub(openedAt) < s.stableWindow {
		streak = attempt
	}
	s.fail(gen, streak, err)
}

func (s *Subscription) read(ctx context.Context, ch stream.Channel, events chan<- Event) error {
	for {
		payload, err := ch.Next(ctx)
		if err != nil {
			return err
		}

		n, err := DecodeNotification(payload)
		if err != nil {
			evt := s.log.Warn().Err(err)
			var perr *notify.ParseError
			if errors.As(err, &perr) {
				evt = evt.Str("payload", perr.Payload)
			}
			evt.Msg("dropping malformed push payload")
			continue
		}

		ev := Event{Notification: n, Seq: s.seq.Add(1)}
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscription) fail(gen uint64, attempt int, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}

	switch {
	case errors.Is(err, notify.ErrAuth):
		s.stopLocked()
		s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnFailed, Attempt: attempt})
		s.log.Error().Err(err).Msg("push stream rejected the session, not retrying")
	case s.policy.Exhausted(attempt):
		s.stopLocked()
		s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnFailed, Attempt: attempt})
		s.log.Warn().Err(err).Int("attempts", attempt).Msg("real-time updates unavailable")
	default:
		delay := s.policy.Delay(attempt)
		next := attempt + 1
		s.timer = s.schedule(delay, func() { s.retry(gen, next) })
		s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnReconnecting, Attempt: next})
		s.log.Debug().Err(err).Dur("delay", delay).Int("attempt", next).Msg("push stream lost, reconnecting")
	}
}

func (s *Subscription) retry(gen uint64, attempt int) {
	s.mu.Lock()
	if s.gen != gen || s.state.Status != notify.ConnReconnecting {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx, events := s.ctx, s.events
	s.setStateAndUnlock(notify.ConnectionState{Status: notify.ConnConnecting, Attempt: attempt})

	go s.run(ctx, gen, attempt, events)
}

func (s *Subscription) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// setStateAndUnlock must be called with mu held. It releases mu before the
// hook runs.
func (s *Subscription) setStateAndUnlock(st notify.ConnectionState) {
	s.state = st
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	if s.onState != nil {
		s.onState(st)
	}
}
