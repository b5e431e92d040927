package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func rejected(t *testing.T, s *store.MemoryPropertyStore, deadline time.Time) *models.Property {
	t.Helper()
	p := &models.Property{Title: "Shack"}
	p.MarkRejected("Incomplete documents", deadline)
	require.NoError(t, s.Insert(context.Background(), p))
	return p
}

func exists(s *store.MemoryPropertyStore, id primitive.ObjectID) bool {
	_, err := s.Get(context.Background(), id)
	return err == nil
}

func TestManager_FiresAtDeadline(t *testing.T) {
	s := store.NewMemoryPropertyStore()
	var mu sync.Mutex
	var deletedIDs []primitive.ObjectID
	m := NewManager(s, zap.NewNop(), WithOnDeleted(func(id primitive.ObjectID) {
		mu.Lock()
		defer mu.Unlock()
		deletedIDs = append(deletedIDs, id)
	}))
	defer m.Stop()

	deadline := time.Now().Add(40 * time.Millisecond)
	p := rejected(t, s, deadline)
	m.Schedule(p.ID, deadline)
	assert.Equal(t, 1, m.Pending())

	assert.Eventually(t, func() bool { return !exists(s, p.ID) }, waitFor, tick)
	assert.False(t, time.Now().Before(deadline))
	assert.Equal(t, 0, m.Pending())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []primitive.ObjectID{p.ID}, deletedIDs)
}

func TestManager_RearmSupersedesPreviousTimer(t *testing.T) {
	s := store.NewMemoryPropertyStore()
	m := NewManager(s, zap.NewNop())
	defer m.Stop()

	early := time.Now().Add(20 * time.Millisecond)
	p := rejected(t, s, early)
	m.Schedule(p.ID, early)

	later := time.Now().Add(time.Hour)
	m.Schedule(p.ID, later)
	assert.Equal(t, 1, m.Pending())

	fireAt, ok := m.FireAt(p.ID)
	require.True(t, ok)
	assert.Equal(t, later, fireAt)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, exists(s, p.ID))
}

func TestManager_SkipsWhenApprovedBeforeDeadline(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryPropertyStore()
	m := NewManager(s, zap.NewNop())
	defer m.Stop()

	deadline := time.Now().Add(30 * time.Millisecond)
	p := rejected(t, s, deadline)
	m.Schedule(p.ID, deadline)

	// re-approved without cancelling the timer: the fire-time check must
	// still refuse to delete
	p.ClearRejection(models.ApprovalApproved)
	require.NoError(t, s.Update(ctx, p))

	time.Sleep(80 * time.Millisecond)
	assert.True(t, exists(s, p.ID))
	assert.Equal(t, 0, m.Pending())
}

func TestManager_RearmsWhenPersistedDeadlineMovedLater(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryPropertyStore()
	m := NewManager(s, zap.NewNop())
	defer m.Stop()

	deadline := time.Now().Add(20 * time.Millisecond)
	p := rejected(t, s, deadline)
	m.Schedule(p.ID, deadline)

	later := time.Now().Add(time.Hour)
	p.MarkRejected("Still incomplete", later)
	require.NoError(t, s.Update(ctx, p))

	assert.Eventually(t, func() bool {
		at, ok := m.FireAt(p.ID)
		return ok && at.Equal(later)
	}, waitFor, tick)
	assert.True(t, exists(s, p.ID))
}

func TestManager_Cancel(t *testing.T) {
	s := store.NewMemoryPropertyStore()
	m := NewManager(s, zap.NewNop())

	deadline := time.Now().Add(20 * time.Millisecond)
	p := rejected(t, s, deadline)
	m.Schedule(p.ID, deadline)

	assert.True(t, m.Cancel(p.ID))
	assert.False(t, m.Cancel(p.ID))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, exists(s, p.ID))
}

func TestManager_SweepAndRestore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryPropertyStore()
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	m := NewManager(s, zap.NewNop(), WithClock(func() time.Time { return now }))
	defer m.Stop()

	overdue := rejected(t, s, now.Add(-time.Minute))
	upcoming := rejected(t, s, now.Add(time.Hour))
	live := &models.Property{ApprovalStatus: models.ApprovalApproved}
	require.NoError(t, s.Insert(ctx, live))

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, exists(s, overdue.ID))
	assert.True(t, exists(s, upcoming.ID))
	assert.True(t, exists(s, live.ID))

	restored, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	_, armed := m.FireAt(overdue.ID)
	assert.False(t, armed)
	at, armed := m.FireAt(upcoming.ID)
	assert.True(t, armed)
	assert.Equal(t, now.Add(time.Hour), at)
}

type failingStore struct {
	*store.MemoryPropertyStore
	err error
}

func (f failingStore) DeleteIfDue(context.Context, primitive.ObjectID, time.Time) (bool, error) {
	return false, f.err
}

func TestManager_FireFailureIsNotRetried(t *testing.T) {
	mem := store.NewMemoryPropertyStore()
	m := NewManager(failingStore{MemoryPropertyStore: mem, err: errors.New("mongo down")}, zap.NewNop())
	defer m.Stop()

	deadline := time.Now().Add(10 * time.Millisecond)
	p := rejected(t, mem, deadline)
	m.Schedule(p.ID, deadline)

	assert.Eventually(t, func() bool { return m.Pending() == 0 }, waitFor, tick)
	assert.True(t, exists(mem, p.ID))
}

// skippingStore reports every conditional delete as a no-op, as when the
// listing was rejected again after ListDue ran.
type skippingStore struct {
	*store.MemoryPropertyStore
}

func (skippingStore) DeleteIfDue(context.Context, primitive.ObjectID, time.Time) (bool, error) {
	return false, nil
}

func TestManager_SweepKeepsTimerWhenDeletionSkipped(t *testing.T) {
	mem := store.NewMemoryPropertyStore()
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	m := NewManager(skippingStore{mem}, zap.NewNop(), WithClock(func() time.Time { return now }))
	defer m.Stop()

	p := rejected(t, mem, now.Add(-time.Minute))
	m.Schedule(p.ID, now.Add(time.Hour))

	removed, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	at, armed := m.FireAt(p.ID)
	assert.True(t, armed)
	assert.Equal(t, now.Add(time.Hour), at)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	s := store.NewMemoryPropertyStore()
	m := NewManager(s, zap.NewNop())
	p := rejected(t, s, time.Now().Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Pending() == 1 }, waitFor, tick)
	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, m.Pending())
	assert.True(t, exists(s, p.ID))
}
