package booking

import (
	"testing"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	allowed := []struct {
		from models.AppointmentStatus
		ev   Event
		want models.AppointmentStatus
	}{
		{models.AppointmentPending, EventConfirm, models.AppointmentConfirmed},
		{models.AppointmentPending, EventCancel, models.AppointmentCancelled},
		{models.AppointmentConfirmed, EventCancel, models.AppointmentCancelled},
		{models.AppointmentConfirmed, EventComplete, models.AppointmentCompleted},
	}
	for _, tc := range allowed {
		got, err := Next(tc.from, tc.ev)
		require.NoError(t, err, "%s/%s", tc.from, tc.ev)
		assert.Equal(t, tc.want, got, "%s/%s", tc.from, tc.ev)
	}

	denied := []struct {
		from models.AppointmentStatus
		ev   Event
	}{
		{models.AppointmentPending, EventComplete},
		{models.AppointmentConfirmed, EventConfirm},
		{models.AppointmentCancelled, EventConfirm},
		{models.AppointmentCancelled, EventComplete},
		{models.AppointmentCompleted, EventCancel},
	}
	for _, tc := range denied {
		_, err := Next(tc.from, tc.ev)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState), "%s/%s", tc.from, tc.ev)
	}
}
