package lifecycle

import (
	"testing"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	cases := []struct {
		from   models.ApprovalStatus
		action Action
		want   models.ApprovalStatus
	}{
		{models.ApprovalPending, ActionEdit, models.ApprovalPending},
		{models.ApprovalPending, ActionApprove, models.ApprovalApproved},
		{models.ApprovalPending, ActionReject, models.ApprovalRejected},
		{models.ApprovalApproved, ActionEdit, models.ApprovalPending},
		{models.ApprovalApproved, ActionReject, models.ApprovalRejected},
		{models.ApprovalRejected, ActionEdit, models.ApprovalPending},
		{models.ApprovalRejected, ActionApprove, models.ApprovalApproved},
		{models.ApprovalRejected, ActionReject, models.ApprovalRejected},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		require.NoError(t, err, "%s/%s", tc.from, tc.action)
		assert.Equal(t, tc.want, got, "%s/%s", tc.from, tc.action)
	}

	_, err := Next(models.ApprovalApproved, ActionApprove)
	assert.Equal(t, apperrors.CodeAlreadyApproved, apperrors.CodeOf(err))

	_, err = Next("archived", ActionEdit)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
}
