package repository

import (
	"strings"
	"time"
)

// ── Domain types for monitoring reports ──────────────────────────────────────

// ItemResult is the outcome recorded for one checklist item.
type ItemResult string

const (
	ResultUnset ItemResult = ""
	// ResultMS means the item meets the standard.
	ResultMS ItemResult = "MS"
	// ResultTMS means the item does not meet the standard.
	ResultTMS ItemResult = "TMS"
)

// ParseItemResult normalizes external spellings ("ms", " Tms ") to the canonical value.
// It returns false for anything that is not MS, TMS or blank.
func ParseItemResult(s string) (ItemResult, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MS":
		return ResultMS, true
	case "TMS":
		return ResultTMS, true
	case "":
		return ResultUnset, true
	default:
		return ResultUnset, false
	}
}

// Report is a monitoring report: the mutable subject of approval.
type Report struct {
	ID          string        `json:"id"`
	TemplateID  string        `json:"template_id"`
	AreaName    string        `json:"area_name"`
	SubmittedBy *string       `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Items       []*ReportItem `json:"items"`
}

// IsSubmitted reports whether item results have been saved at least once.
func (r *Report) IsSubmitted() bool {
	return r.SubmittedAt != nil
}

// ReportItem is one checklist line of a report.
type ReportItem struct {
	ID            string     `json:"id"`
	ReportID      string     `json:"report_id"`
	Position      int        `json:"position"`
	ChecklistItem string     `json:"checklist_item"`
	Required      bool       `json:"required"`
	Result        ItemResult `json:"result"`
	Notes         string     `json:"notes,omitempty"`
	UpdatedBy     *string    `json:"updated_by,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ItemResultUpdate is a requested change to one item.
type ItemResultUpdate struct {
	ItemID string     `json:"item_id"`
	Result ItemResult `json:"result"`
	Notes  string     `json:"notes,omitempty"`
}

// User is a person who submits or approves reports.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Position    string `json:"position"`
	Department  string `json:"department"`
}

// ActivityEntry is one immutable record in a report's activity log.
type ActivityEntry struct {
	ID          int64                  `json:"id"`
	ReportID    string                 `json:"report_id"`
	Action      string                 `json:"action"` // submitted | results_saved | approved | rejected | feedback_given | report_edited
	PerformedBy string                 `json:"performed_by"`
	PerformedAt time.Time              `json:"performed_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
