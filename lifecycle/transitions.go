package lifecycle

import (
	"fmt"

	"github.com/dcode-github/property_marketplace/apperrors"
	"github.com/dcode-github/property_marketplace/models"
)

type Action string

const (
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

var transitions = map[models.ApprovalStatus]map[Action]models.ApprovalStatus{
	models.ApprovalPending: {
		ActionEdit:    models.ApprovalPending,
		ActionApprove: models.ApprovalApproved,
		ActionReject:  models.ApprovalRejected,
	},
	models.ApprovalApproved: {
		ActionEdit:   models.ApprovalPending,
		ActionReject: models.ApprovalRejected,
	},
	models.ApprovalRejected: {
		ActionEdit:    models.ApprovalPending,
		ActionApprove: models.ApprovalApproved,
		ActionReject:  models.ApprovalRejected,
	},
}

// Next returns the approval status reached by applying action in state from.
func Next(from models.ApprovalStatus, action Action) (models.ApprovalStatus, error) {
	if from == models.ApprovalApproved && action == ActionApprove {
		return "", apperrors.InvalidState(apperrors.CodeAlreadyApproved, "property is already approved")
	}
	to, ok := transitions[from][action]
	if !ok {
		return "", apperrors.InvalidState("", fmt.Sprintf("cannot %s a property in state %q", action, from))
	}
	return to, nil
}
