package inbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/colonyops/inbox/internal/core/notify"
)

// gate holds a repository call until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

// memRepo is an in-memory notify.Repository for testing.
type memRepo struct {
	mu     sync.Mutex
	items  map[string]notify.Notification
	prefs  notify.Preferences
	fail   map[string]error
	gates  map[string]*gate
	calls  []string
	nextID int
}

var _ notify.Repository = (*memRepo)(nil)

func newMemRepo(items ...notify.Notification) *memRepo {
	r := &memRepo{
		items: map[string]notify.Notification{},
		fail:  map[string]error{},
		gates: map[string]*gate{},
	}
	for _, n := range items {
		r.items[n.ID] = n
	}
	return r
}

// FailNext makes the next call to op return err.
func (r *memRepo) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// Block holds the next call to op until the returned gate is released.
func (r *memRepo) Block(op string) *gate {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	r.gates[op] = g
	return g
}

func (r *memRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *memRepo) Put(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = n
}

func (r *memRepo) enter(ctx context.Context, op string) error {
	r.mu.Lock()
	r.calls = append(r.calls, op)
	g := r.gates[op]
	delete(r.gates, op)
	r.mu.Unlock()

	if g != nil {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[op]; ok {
		delete(r.fail, op)
		return err
	}
	return nil
}

func (r *memRepo) List(ctx context.Context, _ notify.Filters) (notify.ListResult, error) {
	r.mu.Lock()
	items := make([]notify.Notification, 0, len(r.items))
	for _, n := range r.items {
		items = append(items, n)
	}
	r.mu.Unlock()

	if err := r.enter(ctx, "list"); err != nil {
		return notify.ListResult{}, err
	}
	notify.Sort(items)
	return notify.ListResult{Items: items, UnreadCount: notify.CountUnread(items)}, nil
}

func (r *memRepo) MarkRead(ctx context.Context, id string) error {
	if err := r.enter(ctx, "markRead"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return fmt.Errorf("mark read: %w", notify.ErrNotFound)
	}
	if !n.Read {
		now := time.Now().UTC()
		n.Read, n.ReadAt = true, &now
		r.items[id] = n
	}
	return nil
}

func (r *memRepo) MarkAllRead(ctx context.Context) error {
	if err := r.enter(ctx, "markAllRead"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for id, n := range r.items {
		if !n.Read {
			n.Read, n.ReadAt = true, &now
			r.items[id] = n
		}
	}
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	if err := r.enter(ctx, "delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memRepo) DeleteAllRead(ctx context.Context) error {
	if err := r.enter(ctx, "deleteAllRead"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.items {
		if n.Read {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *memRepo) newLocked(title, message string, typ notify.Type, prio notify.Priority) notify.Notification {
	r.nextID++
	return notify.Notification{
		ID:        fmt.Sprintf("srv-%d", r.nextID),
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  prio,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *memRepo) Create(ctx context.Context, p notify.CreatePayload) (notify.Notification, error) {
	if err := r.enter(ctx, "create"); err != nil {
		return notify.Notification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newLocked(p.Title, p.Message, p.Type, p.Priority), nil
}

func (r *memRepo) CreateBulk(ctx context.Context, p notify.BulkPayload) ([]notify.Notification, error) {
	if err := r.enter(ctx, "createBulk"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notification, 0, len(p.UserIDs))
	for range p.UserIDs {
		out = append(out, r.newLocked(p.Title, p.Message, p.Type, p.Priority))
	}
	return out, nil
}

func (r *memRepo) GetPreferences(ctx context.Context) (notify.Preferences, error) {
	if err := r.enter(ctx, "getPrefs"); err != nil {
		return notify.Preferences{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefs, nil
}

func (r *memRepo) SetPreferences(ctx context.Context, p notify.Preferences) (notify.Preferences, error) {
	if err := r.enter(ctx, "setPrefs"); err != nil {
		return notify.Preferences{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs = p
	return p, nil
}
