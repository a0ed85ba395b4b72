package inbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/inbox/internal/core/logging"
	"github.com/colonyops/inbox/internal/core/notify"
)

// ErrClosed is returned by every Store operation after Close.
var ErrClosed = errors.New("inbox closed")

// TempIDPrefix marks optimistic notifications not yet confirmed by the server.
const TempIDPrefix = "tmp-"

// DefaultEventBuffer is the capacity of the channel between the subscription
// and the store.
const DefaultEventBuffer = 64

// StoreConfig wires a Store. Only Repository is required.
type StoreConfig struct {
	Repository notify.Repository
	// Subscription is the push source. Nil runs the store in polling-only mode.
	Subscription *Subscription
	// Bus receives every genuinely new unread notification.
	Bus *Bus
	// UserID is the signed-in user. Creates addressed to them are shown
	// optimistically.
	UserID string
	// PollInterval refreshes from the server while real-time updates are
	// unavailable. Zero disables polling.
	PollInterval time.Duration
	EventBuffer  int
	// Preferences apply until the server's have been loaded.
	Preferences notify.Preferences
	// OnConnectionChange observes subscription state changes.
	OnConnectionChange func(notify.ConnectionState)
	Now                func() time.Time
}

// Store is the single authoritative in-memory inbox for one session. All
// writes go through its methods or its event loop.
type Store struct {
	repo         notify.Repository
	sub          *Subscription
	bus          *Bus
	userID       string
	pollInterval time.Duration
	onConn       func(notify.ConnectionState)
	now          func() time.Time
	log          zerolog.Logger
	locks        *keyLock

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	wg     sync.WaitGroup

	mu         sync.Mutex
	items      map[string]entry
	tombstones map[string]uint64
	// pending holds the seqs of mutations whose repository call is in flight.
	pending    map[uint64]struct{}
	prefs      notify.Preferences
	prefsSeq   uint64
	seq        uint64
	loaded     bool
	started    bool
	closed     bool
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		repo:         cfg.Repository,
		sub:          cfg.Subscription,
		bus:          cfg.Bus,
		userID:       cfg.UserID,
		pollInterval: cfg.PollInterval,
		onConn:       cfg.OnConnectionChange,
		now:          cfg.Now,
		log:          logging.Component("store"),
		locks:        newKeyLock(),
		ctx:          ctx,
		cancel:       cancel,
		events:       make(chan Event, cfg.EventBuffer),
		items:        map[string]entry{},
		tombstones:   map[string]uint64{},
		pending:      map[uint64]struct{}{},
		prefs:        cfg.Preferences,
	}
}

// Bus returns the arrival bus.
func (s *Store) Bus() *Bus { return s.bus }

// Load fetches the full list and replaces the local set. It does not start
// the subscription.
func (s *Store) Load(ctx context.Context) error {
	return s.refresh(ctx)
}

// Initialize loads the inbox, then preferences, then starts accepting push
// events. A failed load returns before anything is started so the caller can
// retry.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}

	if err := s.loadPreferences(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		s.log.Warn().Ctx(ctx).Err(err).Msg("could not load preferences, using defaults")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if s.sub != nil {
		s.sub.OnState(s.connectionChanged)
		s.wg.Add(1)
		go s.eventLoop()
		s.sub.Connect(s.events)
	}
	if s.pollInterval > 0 {
		s.wg.Add(1)
		go s.pollLoop()
	}
	return nil
}

// Refresh re-fetches the list. Entries changed locally or by a push after
// the refresh started are kept, so a slow response cannot clobber newer state.
func (s *Store) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	start := s.nextSeqLocked()
	s.mu.Unlock()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.repo.List(ctx, notify.Filters{})
	if err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	arrived := s.mergeLocked(res.Items, start)
	s.mu.Unlock()

	for _, n := range arrived {
		s.bus.Publish(n)
	}
	return nil
}

// mergeLocked replaces the set with a server list fetched at start. It returns
// the unread notifications that are new to an already loaded store.
func (s *Store) mergeLocked(items []notify.Notification, start uint64) []notify.Notification {
	var arrived []notify.Notification
	fresh := make(map[string]entry, len(items))

	for _, n := range items {
		if ts, ok := s.tombstones[n.ID]; ok {
			if s.newerLocked(ts, start) {
				continue
			}
			delete(s.tombstones, n.ID)
		}
		cur, exists := s.items[n.ID]
		if exists && s.newerLocked(cur.seq, start) {
			fresh[n.ID] = cur
			continue
		}
		fresh[n.ID] = entry{n: n, seq: start}
		if s.loaded && !exists && !n.Read {
			arrived = append(arrived, n)
		}
	}
	for id, cur := range s.items {
		if _, ok := fresh[id]; !ok && s.newerLocked(cur.seq, start) {
			fresh[id] = cur
		}
	}

	s.items = fresh
	s.loaded = true
	notify.Sort(arrived)
	slices.Reverse(arrived)
	return arrived
}

// newerLocked reports whether a change stamped seq must survive a server list
// fetched at start. Changes of a mutation still awaiting the server always do.
func (s *Store) newerLocked(seq, start uint64) bool {
	if seq > start {
		return true
	}
	_, pending := s.pending[seq]
	return pending
}

func (s *Store) loadPreferences(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	start := s.nextSeqLocked()
	s.mu.Unlock()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	prefs, err := s.repo.GetPreferences(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.prefsSeq < start {
		s.prefs = prefs
		s.prefsSeq = start
	}
	return nil
}

func (s *Store) eventLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.apply(ev)
		}
	}
}

func (s *Store) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.sub != nil && !s.sub.State().Degraded() {
				continue
			}
			if err := s.refresh(s.ctx); err != nil && !errors.Is(err, ErrClosed) {
				s.log.Warn().Err(err).Msg("poll refresh failed")
			}
		}
	}
}

func (s *Store) connectionChanged(st notify.ConnectionState) {
	if st.Degraded() {
		s.log.Warn().Int("attempt", st.Attempt).Msg("real-time updates unavailable, falling back to polling")
	}
	if s.onConn != nil {
		s.onConn(st)
	}
}

// apply upserts one pushed notification.
func (s *Store) apply(ev Event) {
	n := ev.Notification

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, deleted := s.tombstones[n.ID]; deleted {
		s.mu.Unlock()
		s.log.Debug().Str("id", n.ID).Msg("ignoring push for deleted notification")
		return
	}
	_, exists := s.items[n.ID]
	s.items[n.ID] = entry{n: n, seq: s.nextSeqLocked()}
	s.mu.Unlock()

	s.log.Debug().Str("id", n.ID).Uint64("event", ev.Seq).Bool("update", exists).Msg("push applied")
	if !exists && !n.Read {
		s.bus.Publish(n)
	}
}

// MarkAsRead marks one notification read. Marking a read notification again
// leaves ReadAt untouched.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	defer s.locks.Lock(id)()

	m, err := s.begin("mark read", []string{id}, func(seq uint64) error {
		e, ok := s.items[id]
		if !ok {
			return fmt.Errorf("mark read %s: %w", id, notify.ErrNotFound)
		}
		if e.n.Read {
			return nil
		}
		now := s.now().UTC()
		e.n.Read, e.n.ReadAt = true, &now
		s.items[id] = entry{n: e.n, seq: seq}
		return nil
	})
	if err != nil {
		return err
	}

	return s.finish(ctx, m, func(ctx context.Context) error {
		return s.repo.MarkRead(ctx, id)
	}, func() {
		s.ensureReadLocked(id)
	})
}

// MarkAllAsRead marks every notification read.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	ids := s.ids(func(n notify.Notification) bool { return !n.Read })
	defer s.locks.Lock(ids...)()

	var marked []string
	m, err := s.begin("mark all read", ids, func(seq uint64) error {
		now := s.now().UTC()
		for _, id := range ids {
			e, ok := s.items[id]
			if !ok || e.n.Read {
				continue
			}
			e.n.Read, e.n.ReadAt = true, &now
			s.items[id] = entry{n: e.n, seq: seq}
			marked = append(marked, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.finish(ctx, m, func(ctx context.Context) error {
		return s.repo.MarkAllRead(ctx)
	}, func() {
		for _, id := range marked {
			s.ensureReadLocked(id)
		}
	})
}

// Delete removes one notification. Pushes for a deleted id are ignored for
// the rest of the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.locks.Lock(id)()

	m, err := s.begin("delete", []string{id}, func(seq uint64) error {
		if _, ok := s.items[id]; !ok {
			return fmt.Errorf("delete %s: %w", id, notify.ErrNotFound)
		}
		delete(s.items, id)
		s.tombstones[id] = seq
		return nil
	})
	if err != nil {
		return err
	}

	return s.finish(ctx, m, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	}, nil)
}

// DeleteAllRead removes every read notification.
func (s *Store) DeleteAllRead(ctx context.Context) error {
	ids := s.ids(func(n notify.Notification) bool { return n.Read })
	defer s.locks.Lock(ids...)()

	m, err := s.begin("delete read", ids, func(seq uint64) error {
		for _, id := range ids {
			e, ok := s.items[id]
			if !ok || !e.n.Read {
				continue
			}
			delete(s.items, id)
			s.tombstones[id] = seq
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.finish(ctx, m, func(ctx context.Context) error {
		return s.repo.DeleteAllRead(ctx)
	}, nil)
}

// Create sends one notification. When addressed to the signed-in user a
// temporary entry is shown until the server answers.
func (s *Store) Create(ctx context.Context, payload notify.CreatePayload) (notify.Notification, error) {
	payload = payload.Normalize()
	if err := payload.Validate(); err != nil {
		return notify.Notification{}, err
	}

	var tmpIDs []string
	if s.userID != "" && payload.UserID == s.userID {
		tmpIDs = []string{TempIDPrefix + uuid.NewString()}
	}

	m, err := s.begin("create", tmpIDs, func(seq uint64) error {
		for _, id := range tmpIDs {
			s.items[id] = entry{n: s.tempNotification(id, payload.Title, payload.Message, payload.Type, payload.Priority), seq: seq}
		}
		return nil
	})
	if err != nil {
		return notify.Notification{}, err
	}

	var created notify.Notification
	err = s.finish(ctx, m, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, payload)
		return err
	}, func() {
		for _, id := range tmpIDs {
			s.replaceTempLocked(id, created)
		}
	})
	if err != nil {
		return notify.Notification{}, err
	}
	return created, nil
}

// CreateBulk sends one notification per recipient.
func (s *Store) CreateBulk(ctx context.Context, payload notify.BulkPayload) ([]notify.Notification, error) {
	payload = payload.Normalize()
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	self := -1
	if s.userID != "" {
		self = slices.Index(payload.UserIDs, s.userID)
	}
	var tmpIDs []string
	if self >= 0 {
		tmpIDs = []string{TempIDPrefix + uuid.NewString()}
	}

	m, err := s.begin("create bulk", tmpIDs, func(seq uint64) error {
		for _, id := range tmpIDs {
			s.items[id] = entry{n: s.tempNotification(id, payload.Title, payload.Message, payload.Type, payload.Priority), seq: seq}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var created []notify.Notification
	err = s.finish(ctx, m, func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateBulk(ctx, payload)
		return err
	}, func() {
		for _, id := range tmpIDs {
			// The response is in recipient order; anything else is left for
			// the push stream or the next refresh.
			if len(created) == len(payload.UserIDs) {
				s.replaceTempLocked(id, created[self])
			} else {
				delete(s.items, id)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetPreferences stores delivery preferences, optimistically.
func (s *Store) SetPreferences(ctx context.Context, prefs notify.Preferences) (notify.Preferences, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return notify.Preferences{}, ErrClosed
	}
	m := &prefsMutation{seq: s.nextSeqLocked(), before: s.prefs}
	s.prefs, s.prefsSeq = prefs, m.seq
	s.mu.Unlock()

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	saved, err := s.repo.SetPreferences(opCtx, prefs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return notify.Preferences{}, ErrClosed
	}
	if err != nil {
		m.state = mutationRolledBack
		if s.prefsSeq == m.seq {
			s.prefs = m.before
		}
		s.log.Warn().Ctx(ctx).Err(err).Str("state", m.state.String()).Msg("set preferences failed")
		return notify.Preferences{}, err
	}
	m.state = mutationCommitted
	if s.prefsSeq == m.seq {
		s.prefs = saved
	}
	return saved, nil
}

// Snapshot returns every notification, newest first.
func (s *Store) Snapshot() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Get returns one notification by id.
func (s *Store) Get(id string) (notify.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	return e.n, ok
}

// UnreadCount is derived from the current set on every call.
func (s *Store) UnreadCount() int {
	return notify.CountUnread(s.Snapshot())
}

// Filtered returns the notifications matching f, newest first.
func (s *Store) Filtered(f notify.Filters) []notify.Notification {
	return notify.Filter(s.Snapshot(), f)
}

// Stats aggregates the current set. A zero window uses notify.DefaultRecentWindow.
func (s *Store) Stats(window time.Duration) notify.Stats {
	return notify.ComputeStats(s.Snapshot(), s.now(), window)
}

// ConnectionState reports the push subscription state. A store without a
// subscription is always idle.
func (s *Store) ConnectionState() notify.ConnectionState {
	if s.sub == nil {
		return notify.ConnectionState{Status: notify.ConnIdle}
	}
	return s.sub.State()
}

// Preferences returns the current delivery preferences.
func (s *Store) Preferences() notify.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Close tears the session down: pending repository results are discarded,
// the subscription and its reconnect timer are stopped and the state is
// cleared. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.items = map[string]entry{}
	s.tombstones = map[string]uint64{}
	s.prefs = notify.Preferences{}
	s.mu.Unlock()

	s.cancel()
	if s.sub != nil {
		s.sub.Disconnect()
	}
	s.wg.Wait()
	return nil
}

// begin applies the local half of a mutation. ids lists every id apply may
// touch; their prior state is kept for rollback.
func (s *Store) begin(op string, ids []string, apply func(seq uint64) error) (*mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	m := &mutation{
		op:     op,
		seq:    s.nextSeqLocked(),
		state:  mutationPending,
		before: make(map[string]snapshot, len(ids)),
	}
	for _, id := range ids {
		e, present := s.items[id]
		tomb, tombstoned := s.tombstones[id]
		m.before[id] = snapshot{entry: e, present: present, tomb: tomb, tombstoned: tombstoned}
	}

	if err := apply(m.seq); err != nil {
		return nil, err
	}
	s.pending[m.seq] = struct{}{}
	return m, nil
}

// finish runs the remote half and moves m to committed or rolled-back.
// reconcile runs under the store lock on success.
func (s *Store) finish(ctx context.Context, m *mutation, remote func(context.Context) error, reconcile func()) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err := remote(opCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, m.seq)
	if s.closed {
		return ErrClosed
	}

	if err != nil {
		m.state = mutationRolledBack
		restored := 0
		for id, snap := range m.before {
			if s.lastTouchLocked(id) != m.seq {
				continue
			}
			restored++
			if snap.present {
				s.items[id] = snap.entry
			} else {
				delete(s.items, id)
			}
			if snap.tombstoned {
				s.tombstones[id] = snap.tomb
			} else {
				delete(s.tombstones, id)
			}
		}
		s.log.Warn().Ctx(ctx).Err(err).
			Str("op", m.op).
			Str("state", m.state.String()).
			Int("restored", restored).
			Msg("mutation failed")
		return err
	}

	m.state = mutationCommitted
	if reconcile != nil {
		reconcile()
	}
	return nil
}

// ensureReadLocked re-applies a committed read when a stale push flipped the
// entry back to unread while the request was in flight.
func (s *Store) ensureReadLocked(id string) {
	e, ok := s.items[id]
	if !ok || e.n.Read {
		return
	}
	now := s.now().UTC()
	e.n.Read, e.n.ReadAt = true, &now
	s.items[id] = entry{n: e.n, seq: s.nextSeqLocked()}
}

func (s *Store) replaceTempLocked(tmpID string, n notify.Notification) {
	delete(s.items, tmpID)
	if n.ID == "" {
		return
	}
	if _, deleted := s.tombstones[n.ID]; deleted {
		return
	}
	if _, exists := s.items[n.ID]; exists {
		return
	}
	s.items[n.ID] = entry{n: n, seq: s.nextSeqLocked()}
}

func (s *Store) tempNotification(id, title, message string, typ notify.Type, prio notify.Priority) notify.Notification {
	return notify.Notification{
		ID:        id,
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  prio,
		CreatedAt: s.now().UTC(),
	}
}

func (s *Store) ids(match func(notify.Notification) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for id, e := range s.items {
		if match(e.n) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Store) lastTouchLocked(id string) uint64 {
	if e, ok := s.items[id]; ok {
		return e.seq
	}
	return s.tombstones[id]
}

func (s *Store) snapshotLocked() []notify.Notification {
	out := make([]notify.Notification, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.n)
	}
	notify.Sort(out)
	return out
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// opContext derives a context that is also cancelled by Close.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
