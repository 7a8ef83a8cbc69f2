package approval

import (
	"fmt"
	"strings"
)

// Action is a step transition a user can request.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionFeedback    Action = "feedback"
	ActionEditAndMark Action = "edit"
)

// ParseAction normalizes an action name.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return ActionApprove, nil
	case "reject", "rejected":
		return ActionReject, nil
	case "feedback", "feedback_given", "give_feedback":
		return ActionFeedback, nil
	case "edit", "edit_and_mark", "edited":
		return ActionEditAndMark, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Outcome returns the ledger outcome this action appends. EditAndMark appends nothing.
func (a Action) Outcome() (Outcome, bool) {
	switch a {
	case ActionApprove:
		return OutcomeApproved, true
	case ActionReject:
		return OutcomeRejected, true
	case ActionFeedback:
		return OutcomeFeedbackGiven, true
	default:
		return OutcomeUnknown, false
	}
}

// RequiresComment reports whether the action is meaningless without text.
func (a Action) RequiresComment() bool {
	return a == ActionFeedback
}
