package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Availability string

const (
	AvailableForSale Availability = "sale"
	AvailableForRent Availability = "rent"
)

type Property struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title                string             `bson:"title" json:"title"`
	Location             string             `bson:"location" json:"location"`
	Price                float64            `bson:"price" json:"price"`
	Beds                 int                `bson:"beds" json:"beds"`
	Baths                int                `bson:"baths" json:"baths"`
	Sqft                 int                `bson:"sqft" json:"sqft"`
	YearBuilt            *int               `bson:"yearBuilt,omitempty" json:"yearBuilt,omitempty"`
	Type                 string             `bson:"type" json:"type"`
	Availability         Availability       `bson:"availability" json:"availability"`
	Description          string             `bson:"description" json:"description"`
	Amenities            []string           `bson:"amenities" json:"amenities"`
	Phone                string             `bson:"phone" json:"phone"`
	Images               []string           `bson:"images" json:"images"`
	OwnerID              string             `bson:"ownerId" json:"ownerId"`
	ApprovalStatus       ApprovalStatus     `bson:"approvalStatus" json:"approvalStatus"`
	RejectionReason      *string            `bson:"rejectionReason" json:"rejectionReason"`
	ScheduledForDeletion *time.Time         `bson:"scheduledForDeletion" json:"scheduledForDeletion"`
	Version              int64              `bson:"version" json:"version"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// MarkRejected moves the property to rejected with the given reason and
// deletion deadline. The rejection fields are only ever set together.
func (p *Property) MarkRejected(reason string, deleteAt time.Time) {
	p.ApprovalStatus = ApprovalRejected
	p.RejectionReason = &reason
	p.ScheduledForDeletion = &deleteAt
}

// ClearRejection sets a non-rejected status and drops the rejection fields.
func (p *Property) ClearRejection(status ApprovalStatus) {
	p.ApprovalStatus = status
	p.RejectionReason = nil
	p.ScheduledForDeletion = nil
}

// RejectionConsistent reports whether the rejection fields agree with the
// approval status.
func (p *Property) RejectionConsistent() bool {
	rejected := p.ApprovalStatus == ApprovalRejected
	return rejected == (p.RejectionReason != nil) && rejected == (p.ScheduledForDeletion != nil)
}

// PropertyStats is the aggregate served to the admin console.
type PropertyStats struct {
	Total             int64            `json:"total"`
	ByApprovalStatus  map[string]int64 `json:"byApprovalStatus"`
	PendingDeletion   int64            `json:"pendingDeletion"`
	AppointmentsTotal int64            `json:"appointmentsTotal"`
	ByAppointment     map[string]int64 `json:"byAppointmentStatus"`
}
