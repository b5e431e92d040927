// Package store is the persistence layer for properties, appointments and
// users. The Mongo implementations are used in production; the memory
// implementations honor the same uniqueness and compare-and-swap rules and
// back the service tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dcode-github/property_marketplace/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrStale     = errors.New("record was modified concurrently")
	ErrDuplicate = errors.New("duplicate key")
)

// ListingFilter narrows the public listing query. Zero values are ignored.
type ListingFilter struct {
	Location     string
	Type         string
	Availability string
	MinPrice     *float64
	MaxPrice     *float64
	MinBeds      *int
	Limit        int64
	Skip         int64
}

type PropertyStore interface {
	Insert(ctx context.Context, p *models.Property) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Property, error)
	// Update replaces the record only if its stored version still equals
	// p.Version; on success p.Version is incremented.
	Update(ctx context.Context, p *models.Property) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DeleteIfDue removes the property only when it is rejected and its
	// deletion deadline is at or before now.
	DeleteIfDue(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)
	ListScheduled(ctx context.Context) ([]models.Property, error)
	ListApproved(ctx context.Context, f ListingFilter) ([]models.Property, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type AppointmentStore interface {
	// Insert fails with ErrDuplicate when another live appointment holds
	// the same slot.
	Insert(ctx context.Context, a *models.Appointment) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	Update(ctx context.Context, a *models.Appointment) error
	FindLive(ctx context.Context, propertyID primitive.ObjectID, date, slot string) (*models.Appointment, error)
	ListForUser(ctx context.Context, userID string) ([]models.Appointment, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
}

const defaultListingLimit = 10
