package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEditable(t *testing.T) {
	tpl := twoStepTemplate()

	tests := []struct {
		name      string
		decisions []Decision
		submitted bool
		user      string
		want      bool
	}{
		{name: "not submitted", submitted: false, user: "tech", want: true},
		{name: "step 1 pending, technician", submitted: true, user: "tech", want: true},
		{name: "step 1 pending, unrelated user", submitted: true, user: "someone", want: true},
		{
			name:      "step 1 approved, step-1 approver",
			decisions: []Decision{decided(1, "A", OutcomeApproved, t0)},
			submitted: true, user: "A", want: true,
		},
		{
			name:      "step 1 approved, technician",
			decisions: []Decision{decided(1, "A", OutcomeApproved, t0)},
			submitted: true, user: "tech", want: false,
		},
		{
			name:      "step 1 rejected, step-1 approver",
			decisions: []Decision{decided(1, "A", OutcomeRejected, t0)},
			submitted: true, user: "A", want: true,
		},
		{
			name: "all complete, step-1 approver",
			decisions: []Decision{
				decided(1, "A", OutcomeApproved, t0),
				decided(2, "B", OutcomeApproved, t0),
			},
			submitted: true, user: "A", want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Resolve(tpl, tt.decisions)
			assert.Equal(t, tt.want, IsEditable(tpl, s, tt.submitted, tt.user))
		})
	}
}

func TestIsEditableEmptyTemplate(t *testing.T) {
	tpl := Template{}
	s := Resolve(tpl, nil)

	assert.True(t, IsEditable(tpl, s, false, "tech"))
	assert.False(t, IsEditable(tpl, s, true, "tech"))
	assert.False(t, IsEditable(tpl, s, true, ""))
}
