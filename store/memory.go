package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func copyProperty(p *models.Property) *models.Property {
	c := *p
	c.Amenities = append([]string(nil), p.Amenities...)
	c.Images = append([]string(nil), p.Images...)
	if p.YearBuilt != nil {
		y := *p.YearBuilt
		c.YearBuilt = &y
	}
	if p.RejectionReason != nil {
		r := *p.RejectionReason
		c.RejectionReason = &r
	}
	if p.ScheduledForDeletion != nil {
		t := *p.ScheduledForDeletion
		c.ScheduledForDeletion = &t
	}
	return &c
}

func copyAppointment(a *models.Appointment) *models.Appointment {
	c := *a
	if a.Feedback != nil {
		f := *a.Feedback
		c.Feedback = &f
	}
	return &c
}

// MemoryPropertyStore is a PropertyStore held in process memory.
type MemoryPropertyStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Property
}

func NewMemoryPropertyStore() *MemoryPropertyStore {
	return &MemoryPropertyStore{items: map[primitive.ObjectID]*models.Property{}}
}

func (s *MemoryPropertyStore) Insert(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, ok := s.items[p.ID]; ok {
		return ErrDuplicate
	}
	s.items[p.ID] = copyProperty(p)
	return nil
}

func (s *MemoryPropertyStore) Get(_ context.Context, id primitive.ObjectID) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProperty(p), nil
}

func (s *MemoryPropertyStore) Update(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[p.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != p.Version {
		return ErrStale
	}
	p.Version++
	s.items[p.ID] = copyProperty(p)
	return nil
}

func (s *MemoryPropertyStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func isDue(p *models.Property, now time.Time) bool {
	return p.ApprovalStatus == models.ApprovalRejected &&
		p.ScheduledForDeletion != nil &&
		!p.ScheduledForDeletion.After(now)
}

func (s *MemoryPropertyStore) DeleteIfDue(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok || !isDue(p, now) {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *MemoryPropertyStore) ListDue(_ context.Context, now time.Time) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []primitive.ObjectID
	for id, p := range s.items {
		if isDue(p, now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryPropertyStore) ListScheduled(_ context.Context) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var props []models.Property
	for _, p := range s.items {
		if p.ApprovalStatus == models.ApprovalRejected && p.ScheduledForDeletion != nil {
			props = append(props, *copyProperty(p))
		}
	}
	return props, nil
}

func matchesListing(p *models.Property, f ListingFilter) bool {
	if p.ApprovalStatus != models.ApprovalApproved {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Availability != "" && string(p.Availability) != f.Availability {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.MinBeds != nil && p.Beds < *f.MinBeds {
		return false
	}
	return true
}

func (s *MemoryPropertyStore) ListApproved(_ context.Context, f ListingFilter) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := []models.Property{}
	for _, p := range s.items {
		if matchesListing(p, f) {
			props = append(props, *copyProperty(p))
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].CreatedAt.After(props[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListingLimit
	}
	if f.Skip >= int64(len(props)) {
		return []models.Property{}, nil
	}
	props = props[f.Skip:]
	if int64(len(props)) > limit {
		props = props[:limit]
	}
	return props, nil
}

func (s *MemoryPropertyStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, p := range s.items {
		counts[string(p.ApprovalStatus)]++
	}
	return counts, nil
}

// MemoryAppointmentStore is an AppointmentStore held in process memory. The
// liveSlots index mirrors the unique partial index of the Mongo store.
type MemoryAppointmentStore struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]*models.Appointment
	liveSlots map[string]primitive.ObjectID
}

func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{
		items:     map[primitive.ObjectID]*models.Appointment{},
		liveSlots: map[string]primitive.ObjectID{},
	}
}

func (s *MemoryAppointmentStore) Insert(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.LiveSlot != "" {
		if _, taken := s.liveSlots[a.LiveSlot]; taken {
			return ErrDuplicate
		}
		s.liveSlots[a.LiveSlot] = a.ID
	}
	s.items[a.ID] = copyAppointment(a)
	return nil
}

func (s *MemoryAppointmentStore) Get(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAppointment(a), nil
}

func (s *MemoryAppointmentStore) Update(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != a.Version {
		return ErrStale
	}
	if a.LiveSlot != "" && a.LiveSlot != cur.LiveSlot {
		if holder, taken := s.liveSlots[a.LiveSlot]; taken && holder != a.ID {
			return ErrDuplicate
		}
	}
	if cur.LiveSlot != "" {
		delete(s.liveSlots, cur.LiveSlot)
	}
	if a.LiveSlot != "" {
		s.liveSlots[a.LiveSlot] = a.ID
	}
	a.Version++
	s.items[a.ID] = copyAppointment(a)
	return nil
}

func (s *MemoryAppointmentStore) FindLive(_ context.Context, propertyID primitive.ObjectID, date, slot string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.liveSlots[models.SlotKey(propertyID, date, slot)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAppointment(s.items[id]), nil
}

func (s *MemoryAppointmentStore) ListForUser(_ context.Context, userID string) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appts := []models.Appointment{}
	for _, a := range s.items {
		if a.RequesterID == userID || a.OwnerID == userID {
			appts = append(appts, *copyAppointment(a))
		}
	}
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
	return appts, nil
}

func (s *MemoryAppointmentStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, a := range s.items {
		counts[string(a.Status)]++
	}
	return counts, nil
}

// MemoryUserStore is a UserStore held in process memory.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]*models.User{}}
}

func (s *MemoryUserStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	c := *u
	s.users[u.UserID] = &c
	return nil
}

func (s *MemoryUserStore) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}
