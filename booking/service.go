// Package booking schedules property viewings and moves them through their
// lifecycle. At most one live appointment may hold a (property, date, time)
// slot; the store's uniqueness rule decides races between concurrent
// requests.
package booking

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/notify"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	dateLayout          = "2006-01-02"
	defaultCancelReason = "Cancelled by user"
	ownerCancelReason   = "Cancelled by owner"
	maxWriteAttempts    = 3
	notificationTimeout = 5 * time.Second
)

type ScheduleInput struct {
	PropertyID string `json:"propertyId" validate:"required"`
	Date       string `json:"date" validate:"required"`
	Time       string `json:"time" validate:"required,max=32"`
	Notes      string `json:"notes" validate:"max=1000"`
}

type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Result is an appointment plus any notification failures that did not
// fail the operation.
type Result struct {
	Appointment *models.Appointment
	Warnings    []string
}

type Service struct {
	appts    store.AppointmentStore
	props    store.PropertyStore
	users    store.UserStore
	notifier notify.Notifier
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(appts store.AppointmentStore, props store.PropertyStore, users store.UserStore, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	s := &Service{
		appts:    appts,
		props:    props,
		users:    users,
		notifier: notifier,
		validate: v,
		logger:   logger.Named("booking"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "url":
			msgs = append(msgs, fe.Field()+" must be a valid URL")
		case "min", "max":
			msgs = append(msgs, fe.Field()+" is out of range")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return apperrors.Validation("", strings.Join(msgs, "; "))
}

func appointmentNotFound() error {
	return apperrors.NotFound(apperrors.CodeAppointmentNotFound, "appointment not found")
}

func slotTaken() error {
	return apperrors.Conflict(apperrors.CodeSlotUnavailable, "this time slot is already booked")
}

// Schedule books a viewing for the caller. The appointment starts pending
// and both parties are notified.
func (s *Service) Schedule(ctx context.Context, caller utils.Caller, in ScheduleInput) (*Result, error) {
	in.PropertyID = strings.TrimSpace(in.PropertyID)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := s.check(&in); err != nil {
		return nil, err
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return nil, apperrors.Validation("", "date must be a calendar date in YYYY-MM-DD form")
	}
	pid, err := primitive.ObjectIDFromHex(in.PropertyID)
	if err != nil {
		return nil, apperrors.Validation("", "propertyId is not a valid id")
	}

	prop, err := s.props.Get(ctx, pid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodePropertyNotFound, "property not found")
	}
	if err != nil {
		return nil, apperrors.Internal("load property", err)
	}
	if prop.OwnerID == "" {
		return nil, apperrors.InvalidState(apperrors.CodeOwnerMissing, "property has no owner to book with")
	}
	if prop.OwnerID == caller.UserID {
		return nil, apperrors.Forbidden(apperrors.CodeSelfBooking, "you cannot book a viewing of your own property")
	}

	_, err = s.appts.FindLive(ctx, pid, in.Date, in.Time)
	switch {
	case err == nil:
		return nil, slotTaken()
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperrors.Internal("check slot", err)
	}

	now := s.now()
	a := &models.Appointment{
		ID:             primitive.NewObjectID(),
		PropertyID:     pid,
		RequesterID:    caller.UserID,
		RequesterEmail: caller.Email,
		OwnerID:        prop.OwnerID,
		Date:           in.Date,
		Time:           in.Time,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	a.SetStatus(models.AppointmentPending)

	err = s.appts.Insert(ctx, a)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, slotTaken()
	}
	if err != nil {
		s.logger.Error("insert appointment failed", zap.Error(err))
		return nil, apperrors.Internal("create appointment", err)
	}
	s.logger.Info("viewing scheduled",
		zap.String("appointmentId", a.ID.Hex()),
		zap.String("propertyId", pid.Hex()),
		zap.String("slot", a.LiveSlot))

	res := &Result{Appointment: a}
	s.notify(ctx, res, a.RequesterEmail, requestedForRequester(prop, a))
	s.notifyUser(ctx, res, a.OwnerID, requestedForOwner(prop, a))
	return res, nil
}

// mutate reloads the appointment, applies fn and writes it back with a
// version check, retrying on concurrent writes.
func (s *Service) mutate(ctx context.Context, id primitive.ObjectID, fn func(a *models.Appointment) error) (*models.Appointment, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		a, err := s.appts.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, appointmentNotFound()
		}
		if err != nil {
			return nil, apperrors.Internal("load appointment", err)
		}
		if err := fn(a); err != nil {
			return nil, err
		}
		a.UpdatedAt = s.now()

		err = s.appts.Update(ctx, a)
		switch {
		case err == nil:
			return a, nil
		case errors.Is(err, store.ErrStale):
			continue
		case errors.Is(err, store.ErrDuplicate):
			return nil, slotTaken()
		case errors.Is(err, store.ErrNotFound):
			return nil, appointmentNotFound()
		default:
			s.logger.Error("update appointment failed", zap.String("appointmentId", id.Hex()), zap.Error(err))
			return nil, apperrors.Internal("update appointment", err)
		}
	}
	return nil, apperrors.Conflict(apperrors.CodeStaleWrite, "appointment was modified concurrently, retry the request")
}

func isOwnerOrAdmin(caller utils.Caller, a *models.Appointment) bool {
	return caller.IsAdmin() || caller.UserID == a.OwnerID
}

// UpdateStatus lets the property owner confirm or cancel a viewing. reason is
// recorded only on cancellation.
// Completion only happens through feedback.
func (s *Service) UpdateStatus(ctx context.Context, caller utils.Caller, id primitive.ObjectID, status, reason string) (*Result, error) {
	var ev Event
	switch models.AppointmentStatus(strings.ToLower(strings.TrimSpace(status))) {
	case models.AppointmentConfirmed:
		ev = EventConfirm
	case models.AppointmentCancelled:
		ev = EventCancel
	case models.AppointmentCompleted:
		return nil, apperrors.InvalidState("", "appointments are completed by submitting feedback")
	default:
		return nil, apperrors.Validation("", "status must be one of [confirmed cancelled]")
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = ownerCancelReason
	}

	a, err := s.mutate(ctx, id, func(a *models.Appointment) error {
		if !isOwnerOrAdmin(caller, a) {
			return apperrors.Forbidden("", "only the property owner can change this appointment")
		}
		next, err := Next(a.Status, ev)
		if err != nil {
			return err
		}
		a.SetStatus(next)
		if ev == EventCancel {
			a.CancellationReason = reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment status changed",
		zap.String("appointmentId", id.Hex()),
		zap.String("status", string(a.Status)))

	res := &Result{Appointment: a}
	s.notify(ctx, res, a.RequesterEmail, statusChanged(a))
	return res, nil
}

// Cancel withdraws the caller's own booking.
func (s *Service) Cancel(ctx context.Context, caller utils.Caller, id primitive.ObjectID, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}
	a, err := s.mutate(ctx, id, func(a *models.Appointment) error {
		if caller.UserID != a.RequesterID {
			return apperrors.Forbidden("", "only the requester can cancel this appointment")
		}
		next, err := Next(a.Status, EventCancel)
		if err != nil {
			return err
		}
		a.SetStatus(next)
		a.CancellationReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled by requester", zap.String("appointmentId", id.Hex()))

	res := &Result{Appointment: a}
	s.notifyUser(ctx, res, a.OwnerID, cancelledByRequester(a))
	return res, nil
}

type meetingLinkInput struct {
	MeetingLink string `json:"meetingLink" validate:"required,url"`
}

// UpdateMeetingLink attaches an online meeting link to a confirmed viewing.
func (s *Service) UpdateMeetingLink(ctx context.Context, caller utils.Caller, id primitive.ObjectID, link string) (*Result, error) {
	in := meetingLinkInput{MeetingLink: strings.TrimSpace(link)}
	if err := s.check(&in); err != nil {
		return nil, err
	}
	a, err := s.mutate(ctx, id, func(a *models.Appointment) error {
		if !isOwnerOrAdmin(caller, a) {
			return apperrors.Forbidden("", "only the property owner can set the meeting link")
		}
		if a.Status != models.AppointmentConfirmed {
			return apperrors.InvalidState("", "meeting links can only be set on confirmed appointments")
		}
		a.MeetingLink = in.MeetingLink
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Appointment: a}
	s.notify(ctx, res, a.RequesterEmail, meetingLinkUpdated(a))
	return res, nil
}

// SubmitFeedback records the requester's rating and completes the viewing.
func (s *Service) SubmitFeedback(ctx context.Context, caller utils.Caller, id primitive.ObjectID, in FeedbackInput) (*Result, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := s.check(&in); err != nil {
		return nil, err
	}
	a, err := s.mutate(ctx, id, func(a *models.Appointment) error {
		if caller.UserID != a.RequesterID {
			return apperrors.Forbidden("", "only the requester can leave feedback")
		}
		next, err := Next(a.Status, EventComplete)
		if err != nil {
			return err
		}
		a.SetStatus(next)
		a.Feedback = &models.Feedback{Rating: in.Rating, Comment: in.Comment, SubmittedAt: s.now()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("feedback submitted", zap.String("appointmentId", id.Hex()), zap.Int("rating", in.Rating))

	res := &Result{Appointment: a}
	s.notifyUser(ctx, res, a.OwnerID, feedbackReceived(a))
	return res, nil
}

// Get returns an appointment visible to its requester, the owner or an admin.
func (s *Service) Get(ctx context.Context, caller utils.Caller, id primitive.ObjectID) (*models.Appointment, error) {
	a, err := s.appts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, appointmentNotFound()
	}
	if err != nil {
		return nil, apperrors.Internal("load appointment", err)
	}
	if caller.UserID != a.RequesterID && !isOwnerOrAdmin(caller, a) {
		return nil, apperrors.Forbidden("", "you are not part of this appointment")
	}
	return a, nil
}

// ListForUser returns the caller's appointments as requester or owner.
func (s *Service) ListForUser(ctx context.Context, caller utils.Caller) ([]models.Appointment, error) {
	appts, err := s.appts.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperrors.Internal("list appointments", err)
	}
	return appts, nil
}

// notify sends best effort. Failures are logged and reported as warnings.
func (s *Service) notify(ctx context.Context, res *Result, to string, m message) {
	if to == "" {
		res.Warnings = append(res.Warnings, "notification skipped: recipient has no email address")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, to, m.subject, m.body); err != nil {
		s.logger.Warn("notification failed",
			zap.String("appointmentId", res.Appointment.ID.Hex()),
			zap.String("subject", m.subject),
			zap.Error(err))
		res.Warnings = append(res.Warnings, "could not send notification: "+m.subject)
	}
}

func (s *Service) notifyUser(ctx context.Context, res *Result, userID string, m message) {
	u, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed", zap.String("userId", userID), zap.Error(err))
		res.Warnings = append(res.Warnings, "could not send notification: "+m.subject)
		return
	}
	s.notify(ctx, res, u.Email, m)
}
