package guard_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebot/internal/guard"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTable(timeout time.Duration) (*guard.Table, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return guard.NewTable(timeout, guard.WithClock(clock.Now)), clock
}

func TestAcquireIsExclusivePerRequester(t *testing.T) {
	table, _ := newTable(time.Minute)

	lease, err := table.Acquire(1)
	require.NoError(t, err)
	assert.False(t, lease.Reclaimed)

	_, err = table.Acquire(1)
	assert.ErrorIs(t, err, guard.ErrBusy)

	other, err := table.Acquire(2)
	require.NoError(t, err, "different requesters run in parallel")
	other.Release()

	assert.True(t, lease.Release())
	assert.False(t, table.Held(1))

	again, err := table.Acquire(1)
	require.NoError(t, err)
	again.Release()
}

func TestStaleLockIsReclaimed(t *testing.T) {
	table, clock := newTable(10 * time.Minute)

	abandoned, err := table.Acquire(7)
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	_, err = table.Acquire(7)
	require.ErrorIs(t, err, guard.ErrBusy, "a young lock is never reclaimed")

	clock.Advance(2 * time.Minute)
	fresh, err := table.Acquire(7)
	require.NoError(t, err)
	assert.True(t, fresh.Reclaimed)
	assert.NotEqual(t, abandoned.Token, fresh.Token)

	assert.False(t, abandoned.Release(), "a displaced holder must not free its successor")
	assert.True(t, table.Held(7))

	assert.True(t, fresh.Release())
	assert.Zero(t, table.Len())
}

func TestReleaseIsIdempotent(t *testing.T) {
	table, _ := newTable(time.Minute)
	lease, err := table.Acquire(3)
	require.NoError(t, err)

	var removed atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lease.Release() {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), removed.Load())

	var nilLease *guard.Lease
	assert.False(t, nilLease.Release())
}

func TestZeroTimeoutNeverReclaims(t *testing.T) {
	table, clock := newTable(0)
	_, err := table.Acquire(5)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = table.Acquire(5)
	assert.ErrorIs(t, err, guard.ErrBusy)
}

func TestConcurrentAcquireGrantsOneLease(t *testing.T) {
	table, _ := newTable(time.Minute)
	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := table.Acquire(42); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestObserverSeesEveryTransition(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var events []guard.Event
	table := guard.NewTable(time.Minute,
		guard.WithClock(clock.Now),
		guard.WithObserver(func(event guard.Event, _ int64) { events = append(events, event) }),
	)

	first, err := table.Acquire(1)
	require.NoError(t, err)
	_, err = table.Acquire(1)
	require.ErrorIs(t, err, guard.ErrBusy)
	clock.Advance(2 * time.Minute)
	second, err := table.Acquire(1)
	require.NoError(t, err)
	first.Release()
	second.Release()
	second.Release()

	assert.Equal(t, []guard.Event{
		guard.EventAcquired,
		guard.EventBusy,
		guard.EventReclaimed,
		guard.EventAcquired,
		guard.EventReleased,
	}, events)
}
