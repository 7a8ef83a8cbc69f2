package approval

import (
	"fmt"
	"sort"
)

// State is the resolution of a template against its ledger.
type State struct {
	// Steps maps step number to resolved status.
	Steps map[int]Status `json:"steps"`
	// Order lists step numbers ascending.
	Order []int `json:"order"`
	// ActiveStep is the first Pending step, or last step + 1 when none is Pending.
	ActiveStep  int  `json:"active_step"`
	AllComplete bool `json:"all_complete"`
}

// StatusOf returns the resolved status of a step and whether the step exists.
func (s State) StatusOf(step int) (Status, bool) {
	st, ok := s.Steps[step]
	return st, ok
}

// WithOverlay returns a copy of s where step carries the given status. ActiveStep and
// AllComplete are left as resolved from the ledger.
func (s State) WithOverlay(step int, status Status) State {
	out := State{
		Steps:       make(map[int]Status, len(s.Steps)),
		Order:       append([]int(nil), s.Order...),
		ActiveStep:  s.ActiveStep,
		AllComplete: s.AllComplete,
	}
	for k, v := range s.Steps {
		out.Steps[k] = v
	}
	if _, ok := out.Steps[step]; ok {
		out.Steps[step] = status
	}
	return out
}

type stepKey struct {
	number   int
	approver string
}

// Resolve computes per-step status and the active step pointer.
//
// A decision counts for a step only if both its step number and approver match. When the
// ledger holds several decisions for one step, the latest DecidedAt wins, and ties go to the
// later entry. Rejected and FeedbackGiven steps do not block the pointer; only Pending does.
func Resolve(t Template, decisions []Decision) State {
	state := State{Steps: make(map[int]Status, len(t.Steps)), ActiveStep: 1}
	if len(t.Steps) == 0 {
		return state
	}

	steps := append([]Step(nil), t.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })

	latest := make(map[stepKey]Decision, len(decisions))
	for _, d := range decisions {
		k := stepKey{number: d.StepNumber, approver: d.ApproverID}
		if prev, ok := latest[k]; ok && d.DecidedAt.Before(prev.DecidedAt) {
			continue
		}
		latest[k] = d
	}

	state.Order = make([]int, 0, len(steps))
	active := 0
	allApproved := true
	for _, s := range steps {
		status := StatusPending
		if d, ok := latest[stepKey{number: s.Number, approver: s.ApproverID}]; ok {
			status = FromOutcome(d.Outcome)
		}
		state.Steps[s.Number] = status
		state.Order = append(state.Order, s.Number)

		if status == StatusPending && active == 0 {
			active = s.Number
		}
		if status != StatusApproved {
			allApproved = false
		}
	}

	if active == 0 {
		active = steps[len(steps)-1].Number + 1
	}
	state.ActiveStep = active
	state.AllComplete = allApproved
	return state
}

// ValidateTemplate reports step numbering that breaks the 1..N contiguity Resolve assumes.
func ValidateTemplate(t Template) error {
	seen := make(map[int]struct{}, len(t.Steps))
	for _, s := range t.Steps {
		if s.Number < 1 {
			return fmt.Errorf("step number %d is not positive", s.Number)
		}
		if _, dup := seen[s.Number]; dup {
			return fmt.Errorf("duplicate step number %d", s.Number)
		}
		seen[s.Number] = struct{}{}
	}
	for n := 1; n <= len(t.Steps); n++ {
		if _, ok := seen[n]; !ok {
			return fmt.Errorf("step numbers are not contiguous: missing step %d", n)
		}
	}
	return nil
}
