package booking

import (
	"fmt"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
)

type Event string

const (
	EventConfirm  Event = "confirm"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
)

// cancelled and completed are terminal. Feedback drives the complete event,
// so only a confirmed viewing can receive it; a pending one has not happened.
var transitions = map[models.AppointmentStatus]map[Event]models.AppointmentStatus{
	models.AppointmentPending: {
		EventConfirm: models.AppointmentConfirmed,
		EventCancel:  models.AppointmentCancelled,
	},
	models.AppointmentConfirmed: {
		EventCancel:   models.AppointmentCancelled,
		EventComplete: models.AppointmentCompleted,
	},
}

func Next(from models.AppointmentStatus, ev Event) (models.AppointmentStatus, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return "", apperrors.InvalidState("", fmt.Sprintf("cannot %s an appointment that is %s", ev, from))
	}
	return to, nil
}
