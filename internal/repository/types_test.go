package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseItemResult(t *testing.T) {
	cases := map[string]ItemResult{"MS": ResultMS, "ms": ResultMS, " Tms ": ResultTMS, "tms": ResultTMS, "": ResultUnset}
	for in, want := range cases {
		got, ok := ParseItemResult(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseItemResult("OK")
	assert.False(t, ok)
}

func TestReportIsSubmitted(t *testing.T) {
	r := &Report{}
	assert.False(t, r.IsSubmitted())
	now := time.Now()
	r.SubmittedAt = &now
	assert.True(t, r.IsSubmitted())
}
