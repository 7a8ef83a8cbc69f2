package approval

// IsEditable reports whether the report's item results may be changed by userID.
//
// A fully approved report is frozen for everyone. Before submission anyone may enter data.
// While step 1 is Pending anyone may edit. After that only the step-1 approver may.
func IsEditable(t Template, s State, submitted bool, userID string) bool {
	if s.AllComplete {
		return false
	}
	if !submitted {
		return true
	}
	if st, ok := s.StatusOf(1); ok && st == StatusPending {
		return true
	}
	first := t.FirstApprover()
	return first != "" && userID == first
}
