package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Live reports whether an appointment in this status still occupies its slot.
func (s AppointmentStatus) Live() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

type Feedback struct {
	Rating      int       `bson:"rating" json:"rating"`
	Comment     string    `bson:"comment" json:"comment"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
}

type Appointment struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PropertyID         primitive.ObjectID `bson:"propertyId" json:"propertyId"`
	RequesterID        string             `bson:"requesterId" json:"requesterId"`
	RequesterEmail     string             `bson:"requesterEmail" json:"requesterEmail"`
	OwnerID            string             `bson:"ownerId" json:"ownerId"`
	Date               string             `bson:"date" json:"date"`
	Time               string             `bson:"time" json:"time"`
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	MeetingLink        string             `bson:"meetingLink,omitempty" json:"meetingLink,omitempty"`
	CancellationReason string             `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	Feedback           *Feedback          `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Status             AppointmentStatus  `bson:"status" json:"status"`
	LiveSlot           string             `bson:"liveSlot,omitempty" json:"-"`
	Version            int64              `bson:"version" json:"version"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SlotKey identifies the (property, date, time) tuple a booking occupies.
func SlotKey(propertyID primitive.ObjectID, date, slot string) string {
	return strings.Join([]string{propertyID.Hex(), date, slot}, "|")
}

// SetStatus changes the status and keeps LiveSlot in step with it: live
// appointments hold the slot key, terminal ones release it.
func (a *Appointment) SetStatus(s AppointmentStatus) {
	a.Status = s
	if s.Live() {
		a.LiveSlot = SlotKey(a.PropertyID, a.Date, a.Time)
	} else {
		a.LiveSlot = ""
	}
}
