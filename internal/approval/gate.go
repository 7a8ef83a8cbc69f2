package approval

// Denial names the first gate clause that failed.
type Denial int

const (
	Allowed Denial = iota
	DenyNotSubmitted
	DenyUnknownStep
	DenyNotApprover
	DenyNotPending
	DenyNotActive
	DenyPredecessorNotApproved
)

func (d Denial) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DenyNotSubmitted:
		return "report has not been submitted"
	case DenyUnknownStep:
		return "step does not exist in the approval template"
	case DenyNotApprover:
		return "user is not the approver for this step"
	case DenyNotPending:
		return "step has already been decided"
	case DenyNotActive:
		return "step is not the active step"
	case DenyPredecessorNotApproved:
		return "previous step has not been approved"
	default:
		return "denied"
	}
}

// Explain evaluates the action gate and returns the first failing clause, or Allowed.
//
// A step that follows a Rejected or FeedbackGiven step can be active yet still be denied
// here, because the predecessor clause requires Approved.
func Explain(t Template, s State, userID string, step int, submitted bool) Denial {
	if !submitted {
		return DenyNotSubmitted
	}
	def, ok := t.StepByNumber(step)
	if !ok {
		return DenyUnknownStep
	}
	if userID == "" || def.ApproverID != userID {
		return DenyNotApprover
	}
	if st, ok := s.StatusOf(step); !ok || st != StatusPending {
		return DenyNotPending
	}
	if step != s.ActiveStep {
		return DenyNotActive
	}
	if step > 1 {
		if prev, ok := s.StatusOf(step - 1); !ok || prev != StatusApproved {
			return DenyPredecessorNotApproved
		}
	}
	return Allowed
}

// CanAct reports whether userID may submit a decision on step right now.
func CanAct(t Template, s State, userID string, step int, submitted bool) bool {
	return Explain(t, s, userID, step, submitted) == Allowed
}

// ActionableSteps returns the steps userID may act on. At most one step qualifies.
func ActionableSteps(t Template, s State, userID string, submitted bool) []int {
	var out []int
	for _, n := range s.Order {
		if CanAct(t, s, userID, n, submitted) {
			out = append(out, n)
		}
	}
	return out
}
