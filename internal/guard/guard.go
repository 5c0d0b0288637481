// Package guard provides per-requester mutual exclusion with stale-lock
// recovery.
//
// A requester holds at most one live Lease. A second Acquire while the lease
// is younger than the staleness timeout fails with ErrBusy; an older lease is
// reclaimed, on the assumption that its holder crashed or hung. Releasing a
// reclaimed lease is a no-op, so a late holder never frees its successor.
package guard

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipebot/internal/logging"
)

// ErrBusy reports that the requester already has a request in flight.
var ErrBusy = errors.New("request already in progress")

// Event is a lock transition reported to observers.
type Event string

const (
	EventAcquired  Event = "acquired"
	EventBusy      Event = "busy"
	EventReclaimed Event = "reclaimed"
	EventReleased  Event = "released"
)

// Observer is notified of every transition. It runs under the table lock
// and must not call back into the Table.
type Observer func(event Event, requesterID int64)

type entry struct {
	token     string
	startedAt time.Time
}

// Table tracks live leases keyed by requester id.
type Table struct {
	mu       sync.Mutex
	entries  map[int64]entry
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customizes a Table.
type Option func(*Table)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the table logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logging.NewComponentLogger(logger, "guard") }
}

// WithObserver registers a transition observer (metrics, tests).
func WithObserver(observer Observer) Option {
	return func(t *Table) { t.observer = observer }
}

// NewTable builds a Table. A non-positive timeout disables reclaiming.
func NewTable(timeout time.Duration, opts ...Option) *Table {
	table := &Table{
		entries: make(map[int64]entry),
		timeout: timeout,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(table)
	}
	return table
}

// Lease is the token returned by Acquire.
type Lease struct {
	RequesterID int64
	Token       string
	StartedAt   time.Time
	// Reclaimed is set when Acquire displaced a stale lease.
	Reclaimed bool

	table *Table
	once  sync.Once
}

// Acquire takes the requester's lock or fails with ErrBusy.
func (t *Table) Acquire(requesterID int64) (*Lease, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	reclaimed := false
	if current, ok := t.entries[requesterID]; ok {
		age := now.Sub(current.startedAt)
		if t.timeout <= 0 || age < t.timeout {
			t.notify(EventBusy, requesterID)
			return nil, ErrBusy
		}
		reclaimed = true
		t.notify(EventReclaimed, requesterID)
		t.logger.Warn("reclaiming stale request lock",
			logging.String(logging.FieldEventType, "lock_reclaimed"),
			logging.Requester(requesterID),
			logging.Duration("age", age),
			logging.String(logging.FieldImpact, "previous request is presumed dead"),
		)
	}

	lease := &Lease{
		RequesterID: requesterID,
		Token:       uuid.NewString(),
		StartedAt:   now,
		Reclaimed:   reclaimed,
		table:       t,
	}
	t.entries[requesterID] = entry{token: lease.Token, startedAt: now}
	t.notify(EventAcquired, requesterID)
	return lease, nil
}

// Release frees the lease. It is safe to call more than once and from a
// goroutine other than the one that acquired it. It reports whether this
// call removed the live entry.
func (l *Lease) Release() bool {
	if l == nil || l.table == nil {
		return false
	}
	released := false
	l.once.Do(func() {
		released = l.table.release(l.RequesterID, l.Token)
	})
	return released
}

func (t *Table) release(requesterID int64, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.entries[requesterID]
	if !ok || current.token != token {
		return false
	}
	delete(t.entries, requesterID)
	t.notify(EventReleased, requesterID)
	return true
}

func (t *Table) notify(event Event, requesterID int64) {
	if t.observer != nil {
		t.observer(event, requesterID)
	}
}

// Held reports whether requesterID currently owns a lease, stale or not.
func (t *Table) Held(requesterID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[requesterID]
	return ok
}

// Len returns the number of live leases.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
