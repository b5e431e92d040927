// Package lifecycle implements the approval workflow of property listings:
// submission, edits that send a listing back to review, reviewer approval
// and rejection, and removal. Rejection arms a deferred deletion.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxWriteAttempts = 3

// Deletions arms and disarms deferred deletions of rejected listings.
type Deletions interface {
	Schedule(id primitive.ObjectID, fireAt time.Time)
	Cancel(id primitive.ObjectID) bool
}

type Service struct {
	props     store.PropertyStore
	deletions Deletions
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	grace     time.Duration
	locks     *keyedLocks
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGracePeriod sets the delay between rejection and deletion.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

func NewService(props store.PropertyStore, deletions Deletions, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		props:     props,
		deletions: deletions,
		validate:  newValidator(),
		logger:    logger.Named("lifecycle"),
		now:       time.Now,
		grace:     24 * time.Hour,
		locks:     newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GracePeriod() time.Duration { return s.grace }

func (s *Service) check(in *PropertyInput, requireImages bool) error {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	if requireImages && len(in.Images) == 0 {
		return apperrors.Validation("", "images needs at least 1 entries")
	}
	if in.YearBuilt != nil && *in.YearBuilt > s.now().Year() {
		return apperrors.Validation("", fmt.Sprintf("yearBuilt must be between %d and %d", minYearBuilt, s.now().Year()))
	}
	return nil
}

func canManage(caller utils.Caller, p *models.Property) bool {
	return caller.IsAdmin() || (caller.UserID != "" && caller.UserID == p.OwnerID)
}

func propertyNotFound() error {
	return apperrors.NotFound(apperrors.CodePropertyNotFound, "property not found")
}

// Create submits a new listing owned by the caller. It always starts pending.
func (s *Service) Create(ctx context.Context, caller utils.Caller, in PropertyInput) (*models.Property, error) {
	if err := s.check(&in, true); err != nil {
		return nil, err
	}
	now := s.now()
	p := &models.Property{
		ID:             primitive.NewObjectID(),
		OwnerID:        caller.UserID,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	in.apply(p)

	if err := s.props.Insert(ctx, p); err != nil {
		s.logger.Error("insert property failed", zap.Error(err))
		return nil, apperrors.Internal("create property", err)
	}
	s.logger.Info("property submitted",
		zap.String("propertyId", p.ID.Hex()),
		zap.String("ownerId", p.OwnerID))
	return p, nil
}

// mutate re-reads the property, applies fn and writes it back with a
// version check, retrying when another writer got there first.
func (s *Service) mutate(ctx context.Context, id primitive.ObjectID, fn func(p *models.Property) error) (*models.Property, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p, err := s.props.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, propertyNotFound()
		}
		if err != nil {
			s.logger.Error("load property failed", zap.String("propertyId", id.Hex()), zap.Error(err))
			return nil, apperrors.Internal("load property", err)
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		p.UpdatedAt = s.now()

		err = s.props.Update(ctx, p)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, store.ErrStale):
			s.logger.Debug("stale property write, retrying",
				zap.String("propertyId", id.Hex()), zap.Int("attempt", attempt))
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, propertyNotFound()
		default:
			s.logger.Error("update property failed", zap.String("propertyId", id.Hex()), zap.Error(err))
			return nil, apperrors.Internal("update property", err)
		}
	}
	return nil, apperrors.Conflict(apperrors.CodeStaleWrite, "property was modified concurrently, retry the request")
}

// Edit overwrites the listing and sends it back to review. Any pending
// deletion is cancelled.
func (s *Service) Edit(ctx context.Context, caller utils.Caller, id primitive.ObjectID, in PropertyInput) (*models.Property, error) {
	if err := s.check(&in, false); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.mutate(ctx, id, func(p *models.Property) error {
		if !canManage(caller, p) {
			return apperrors.Forbidden("", "only the owner or an admin can edit this property")
		}
		next, err := Next(p.ApprovalStatus, ActionEdit)
		if err != nil {
			return err
		}
		in.apply(p)
		p.ClearRejection(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deletions.Cancel(id)
	s.logger.Info("property edited, back to review", zap.String("propertyId", id.Hex()))
	return p, nil
}

// Approve publishes the listing. Approving an approved listing is an
// InvalidStateError.
func (s *Service) Approve(ctx context.Context, caller utils.Caller, id primitive.ObjectID) (*models.Property, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("", "only reviewers can approve properties")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.mutate(ctx, id, func(p *models.Property) error {
		next, err := Next(p.ApprovalStatus, ActionApprove)
		if err != nil {
			return err
		}
		p.ClearRejection(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deletions.Cancel(id)
	s.logger.Info("property approved",
		zap.String("propertyId", id.Hex()),
		zap.String("reviewer", caller.UserID))
	return p, nil
}

// Reject marks the listing rejected and schedules its deletion after the
// grace period. Rejecting again re-arms the deletion.
func (s *Service) Reject(ctx context.Context, caller utils.Caller, id primitive.ObjectID, reason string) (*models.Property, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("", "only reviewers can reject properties")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation(apperrors.CodeRejectionReasonRequired, "a rejection reason is required")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	var deadline time.Time
	p, err := s.mutate(ctx, id, func(p *models.Property) error {
		if _, err := Next(p.ApprovalStatus, ActionReject); err != nil {
			return err
		}
		deadline = s.now().Add(s.grace)
		p.MarkRejected(reason, deadline)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deletions.Schedule(id, deadline)
	s.logger.Info("property rejected",
		zap.String("propertyId", id.Hex()),
		zap.String("reviewer", caller.UserID),
		zap.Time("scheduledForDeletion", deadline))
	return p, nil
}

// Remove hard-deletes the listing regardless of its state.
func (s *Service) Remove(ctx context.Context, caller utils.Caller, id primitive.ObjectID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.props.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return propertyNotFound()
	}
	if err != nil {
		return apperrors.Internal("load property", err)
	}
	if !canManage(caller, p) {
		return apperrors.Forbidden("", "only the owner or an admin can remove this property")
	}

	err = s.props.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return propertyNotFound()
	}
	if err != nil {
		s.logger.Error("delete property failed", zap.String("propertyId", id.Hex()), zap.Error(err))
		return apperrors.Internal("delete property", err)
	}
	s.deletions.Cancel(id)
	s.logger.Info("property removed", zap.String("propertyId", id.Hex()), zap.String("by", caller.UserID))
	return nil
}

// Get returns a listing. Listings that are not approved are only visible
// to their owner and to admins.
func (s *Service) Get(ctx context.Context, caller utils.Caller, id primitive.ObjectID) (*models.Property, error) {
	p, err := s.props.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, propertyNotFound()
	}
	if err != nil {
		return nil, apperrors.Internal("load property", err)
	}
	if p.ApprovalStatus != models.ApprovalApproved && !canManage(caller, p) {
		return nil, propertyNotFound()
	}
	return p, nil
}

func (s *Service) ListApproved(ctx context.Context, f store.ListingFilter) ([]models.Property, error) {
	props, err := s.props.ListApproved(ctx, f)
	if err != nil {
		return nil, apperrors.Internal("list properties", err)
	}
	return props, nil
}
