// Package approval derives the state of a sequential, multi-approver sign-off chain.
//
// Everything here is pure: callers load a Template and its decision ledger, call Resolve,
// then ask CanAct and IsEditable. Nothing in this package performs I/O or keeps state
// between calls.
package approval

import (
	"strings"
	"time"
)

// Template is an ordered list of required approval steps.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Steps    []Step `json:"steps"`
}

// Step is one position in a Template, bound to a single approver.
type Step struct {
	Number             int    `json:"step_number"`
	ApproverID         string `json:"approver_user_id"`
	ApproverName       string `json:"approver_name,omitempty"`
	ApproverPosition   string `json:"approver_position,omitempty"`
	ApproverDepartment string `json:"approver_department,omitempty"`
}

// StepByNumber returns the step with the given number.
func (t Template) StepByNumber(n int) (Step, bool) {
	for _, s := range t.Steps {
		if s.Number == n {
			return s, true
		}
	}
	return Step{}, false
}

// FirstApprover returns the approver of step 1, or "" when there is no step 1.
func (t Template) FirstApprover() string {
	s, ok := t.StepByNumber(1)
	if !ok {
		return ""
	}
	return s.ApproverID
}

// Outcome is a decision recorded in the ledger.
type Outcome string

const (
	OutcomeUnknown       Outcome = ""
	OutcomeApproved      Outcome = "approved"
	OutcomeRejected      Outcome = "rejected"
	OutcomeFeedbackGiven Outcome = "feedback_given"
)

// ParseOutcome normalizes an external outcome string. Unrecognized values map to
// OutcomeUnknown, which resolves as Pending.
func ParseOutcome(s string) Outcome {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return OutcomeApproved
	case "rejected", "reject":
		return OutcomeRejected
	case "feedback_given", "feedback", "feedbackgiven", "feedback given":
		return OutcomeFeedbackGiven
	default:
		return OutcomeUnknown
	}
}

// Decision is one ledger entry answering a step.
type Decision struct {
	StepNumber int       `json:"step_number"`
	ApproverID string    `json:"approver_user_id"`
	Outcome    Outcome   `json:"status"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Status is the resolved state of one step.
type Status int

const (
	StatusPending Status = iota
	StatusApproved
	StatusRejected
	StatusFeedbackGiven
	// StatusEdited is a local annotation for a step-1 edit. The ledger never produces it.
	StatusEdited
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusFeedbackGiven:
		return "FeedbackGiven"
	case StatusEdited:
		return "Edited"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name. Unknown names become Pending.
func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "approved":
		*s = StatusApproved
	case "rejected":
		*s = StatusRejected
	case "feedbackgiven", "feedback_given":
		*s = StatusFeedbackGiven
	case "edited":
		*s = StatusEdited
	default:
		*s = StatusPending
	}
	return nil
}

// FromOutcome maps a ledger outcome to a step status.
func FromOutcome(o Outcome) Status {
	switch o {
	case OutcomeApproved:
		return StatusApproved
	case OutcomeRejected:
		return StatusRejected
	case OutcomeFeedbackGiven:
		return StatusFeedbackGiven
	case OutcomeUnknown:
		return StatusPending
	default:
		return StatusPending
	}
}
