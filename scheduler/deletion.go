// Package scheduler deletes rejected listings once their grace period ends.
//
// The persisted scheduledForDeletion field is the source of truth. In-process
// timers delete a listing promptly at its deadline, and a periodic sweep
// catches anything the timers missed, e.g. after a restart.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the subset of the property store the manager needs.
type Store interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Property, error)
	DeleteIfDue(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)
	ListScheduled(ctx context.Context) ([]models.Property, error)
}

type entry struct {
	timer  *time.Timer
	gen    uint64
	fireAt time.Time
}

type Manager struct {
	store       Store
	logger      *zap.Logger
	now         func() time.Time
	onDeleted   func(id primitive.ObjectID)
	fireTimeout time.Duration

	mu     sync.Mutex
	timers map[primitive.ObjectID]*entry
	gen    uint64
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOnDeleted registers a callback run after every automatic deletion.
func WithOnDeleted(fn func(id primitive.ObjectID)) Option {
	return func(m *Manager) { m.onDeleted = fn }
}

func NewManager(s Store, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:       s,
		logger:      logger.Named("deletion"),
		now:         time.Now,
		onDeleted:   func(primitive.ObjectID) {},
		fireTimeout: 30 * time.Second,
		timers:      map[primitive.ObjectID]*entry{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule arms a one-shot deletion for id at fireAt. A timer already armed
// for the same id is replaced.
func (m *Manager) Schedule(id primitive.ObjectID, fireAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.timers[id]; ok {
		prev.timer.Stop()
	}
	m.gen++
	gen := m.gen
	delay := fireAt.Sub(m.now())
	m.timers[id] = &entry{
		gen:    gen,
		fireAt: fireAt,
		timer:  time.AfterFunc(delay, func() { m.fire(id, gen) }),
	}
	m.logger.Debug("deletion armed",
		zap.String("propertyId", id.Hex()),
		zap.Time("fireAt", fireAt),
		zap.Duration("in", delay))
}

// Cancel disarms the timer for id. It reports whether one was armed.
func (m *Manager) Cancel(id primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.timers[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.timers, id)
	m.logger.Debug("deletion cancelled", zap.String("propertyId", id.Hex()))
	return true
}

// FireAt returns the deadline armed for id, if any.
func (m *Manager) FireAt(id primitive.ObjectID) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[id]
	if !ok {
		return time.Time{}, false
	}
	return e.fireAt, true
}

// Pending returns the number of armed timers.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Stop disarms every timer. Persisted deadlines are untouched.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) fire(id primitive.ObjectID, gen uint64) {
	m.mu.Lock()
	e, ok := m.timers[id]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, id)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.fireTimeout)
	defer cancel()

	log := m.logger.With(zap.String("propertyId", id.Hex()))
	now := m.now()
	deleted, err := m.store.DeleteIfDue(ctx, id, now)
	if err != nil {
		log.Error("scheduled deletion failed", zap.Error(err))
		return
	}
	if deleted {
		log.Info("rejected property deleted after grace period")
		m.onDeleted(id)
		return
	}

	// Nothing matched: the listing is gone, was approved or edited, or was
	// rejected again with a later deadline.
	p, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug("property already removed")
		return
	}
	if err != nil {
		log.Error("reload after skipped deletion failed", zap.Error(err))
		return
	}
	if p.ApprovalStatus == models.ApprovalRejected && p.ScheduledForDeletion != nil && p.ScheduledForDeletion.After(now) {
		m.Schedule(id, *p.ScheduledForDeletion)
		return
	}
	log.Info("property no longer awaiting deletion, skipped",
		zap.String("approvalStatus", string(p.ApprovalStatus)))
}

// Sweep deletes every rejected property whose deadline has passed and
// returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	ids, err := m.store.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		deleted, err := m.store.DeleteIfDue(ctx, id, now)
		if err != nil {
			m.logger.Error("sweep deletion failed", zap.String("propertyId", id.Hex()), zap.Error(err))
			continue
		}
		if !deleted {
			// Rejected again or approved since ListDue; keep any fresh timer.
			continue
		}
		m.Cancel(id)
		removed++
		m.onDeleted(id)
	}
	if removed > 0 {
		m.logger.Info("deletion sweep finished", zap.Int("deleted", removed))
	}
	return removed, nil
}

// Restore arms timers for every persisted pending deletion.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	props, err := m.store.ListScheduled(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range props {
		m.Schedule(p.ID, *p.ScheduledForDeletion)
	}
	m.logger.Info("deletion timers restored", zap.Int("count", len(props)))
	return len(props), nil
}

// Run restores timers and sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if _, err := m.Restore(ctx); err != nil {
		m.logger.Error("restoring deletion timers failed", zap.Error(err))
	}
	if _, err := m.Sweep(ctx); err != nil {
		m.logger.Error("deletion sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("deletion sweep failed", zap.Error(err))
			}
		}
	}
}
