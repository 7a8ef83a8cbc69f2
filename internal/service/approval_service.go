package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/cache"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
)

// Notification event types.
const (
	EventApprovalRequired = "approval_required"
	EventReportApproved   = "report_approved"
	EventStepRejected     = "step_rejected"
	EventFeedbackGiven    = "feedback_given"
	EventReportEdited     = "report_edited"
)

// Activity actions.
const (
	ActivitySubmitted    = "submitted"
	ActivityResultsSaved = "results_saved"
	ActivityEdited       = "report_edited"
)

const contextCachePrefix = "approval-context:"

// ApprovalContext is everything needed to render and act on a report's approval chain.
type ApprovalContext struct {
	ReportID          string                   `json:"report_id"`
	AreaName          string                   `json:"area_name"`
	SubmittedBy       string                   `json:"submitted_by,omitempty"`
	Template          approval.Template        `json:"template"`
	Decisions         []approval.Decision      `json:"decisions"`
	ReportIsSubmitted bool                     `json:"report_is_submitted"`
	Items             []*repository.ReportItem `json:"items"`
	State             approval.State           `json:"state"`
	Permissions       *Permissions             `json:"permissions,omitempty"`
}

// Permissions are the caller-specific results of the gate and the editability rule.
type Permissions struct {
	UserID          string `json:"user_id"`
	CanEdit         bool   `json:"can_edit"`
	ActionableSteps []int  `json:"actionable_steps"`
}

// SubmitDecisionRequest asks to append a decision on one step.
type SubmitDecisionRequest struct {
	ReportID   string          `json:"report_id"`
	StepNumber int             `json:"step_number"`
	Action     approval.Action `json:"action"`
	Comment    string          `json:"comment,omitempty"`
	ActedBy    string          `json:"-"`
}

// DecisionResult reports the outcome of SubmitDecision.
type DecisionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	State   approval.State `json:"state"`
}

// SaveResultsRequest carries item results for a report.
type SaveResultsRequest struct {
	ReportID string                        `json:"report_id"`
	Results  []repository.ItemResultUpdate `json:"results"`
	UserID   string                        `json:"-"`
}

// PendingApproval is a report waiting on the caller.
type PendingApproval struct {
	ReportID   string `json:"report_id"`
	AreaName   string `json:"area_name"`
	StepNumber int    `json:"step_number"`
}

// ApprovalService runs the sequential approval workflow for monitoring reports.
type ApprovalService struct {
	templates TemplateStore
	decisions DecisionStore
	reports   ReportStore
	users     UserStore
	activity  ActivityStore
	notifier  Notifier
	contexts  *cache.Loader[*ApprovalContext]
	log       *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	templates TemplateStore,
	decisions DecisionStore,
	reports ReportStore,
	users UserStore,
	activity ActivityStore,
	notifier Notifier,
	store cache.Store,
	log *logger.Logger,
) *ApprovalService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ApprovalService{
		templates: templates,
		decisions: decisions,
		reports:   reports,
		users:     users,
		activity:  activity,
		notifier:  notifier,
		contexts:  cache.NewLoader[*ApprovalContext](store, log),
		log:       log,
	}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// FetchApprovalContext returns the report's approval context, with permissions computed
// for userID when it is non-empty.
func (s *ApprovalService) FetchApprovalContext(ctx context.Context, reportID, userID string) (*ApprovalContext, error) {
	if reportID == "" {
		return nil, errors.InvalidInput("report_id", "report id is required")
	}
	base, err := s.contexts.Get(ctx, contextCachePrefix+reportID, func(ctx context.Context) (*ApprovalContext, error) {
		return s.load(ctx, reportID)
	})
	if err != nil {
		return nil, err
	}
	return s.viewFor(base, userID), nil
}

// FetchCurrentUser returns the profile of the calling user.
func (s *ApprovalService) FetchCurrentUser(ctx context.Context, userID string) (*repository.User, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "no authenticated user")
	}
	return s.users.GetByID(ctx, userID)
}

// ListPendingForUser returns reports where userID may act right now.
func (s *ApprovalService) ListPendingForUser(ctx context.Context, userID string) ([]PendingApproval, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "no authenticated user")
	}
	ids, err := s.reports.ListSubmittedForApprover(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingApproval, 0, len(ids))
	for _, id := range ids {
		ac, err := s.FetchApprovalContext(ctx, id, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("report_id", id).Msg("Skipping report in pending list")
			continue
		}
		for _, step := range ac.Permissions.ActionableSteps {
			pending = append(pending, PendingApproval{ReportID: id, AreaName: ac.AreaName, StepNumber: step})
		}
	}
	return pending, nil
}

// GetActivity returns the report's activity trail.
func (s *ApprovalService) GetActivity(ctx context.Context, reportID string) ([]*repository.ActivityEntry, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	return s.activity.GetByReportID(ctx, reportID)
}

// ── Decisions ─────────────────────────────────────────────────────────────────

// SubmitDecision appends approve, reject or feedback to the ledger after checking the
// action gate against fresh state.
func (s *ApprovalService) SubmitDecision(ctx context.Context, req *SubmitDecisionRequest) (*DecisionResult, error) {
	outcome, ok := req.Action.Outcome()
	if !ok {
		return nil, errors.InvalidInput("action", fmt.Sprintf("action %q does not record a decision", req.Action))
	}
	comment := strings.TrimSpace(req.Comment)
	if req.Action.RequiresComment() && comment == "" {
		return nil, errors.InvalidInput("comment", "feedback requires a comment")
	}

	ac, err := s.load(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}

	if denial := approval.Explain(ac.Template, ac.State, req.ActedBy, req.StepNumber, ac.ReportIsSubmitted); denial != approval.Allowed {
		s.log.Warn().
			Str("report_id", req.ReportID).
			Str("user_id", req.ActedBy).
			Int("step_number", req.StepNumber).
			Str("reason", denial.String()).
			Msg("Decision rejected by action gate")
		return nil, errors.Forbidden(fmt.Sprintf("cannot act on step %d: %s", req.StepNumber, denial))
	}

	decision := &approval.Decision{
		StepNumber: req.StepNumber,
		ApproverID: req.ActedBy,
		Outcome:    outcome,
		Comment:    comment,
	}
	activity := &repository.ActivityEntry{
		ReportID:    req.ReportID,
		Action:      string(outcome),
		PerformedBy: req.ActedBy,
		Metadata: map[string]interface{}{
			"step_number": req.StepNumber,
			"comment":     comment,
		},
	}
	if err := s.decisions.Append(ctx, req.ReportID, decision, activity); err != nil {
		return nil, err
	}
	s.contexts.Invalidate(ctx, contextCachePrefix+req.ReportID)

	updated, err := s.load(ctx, req.ReportID)
	if err != nil {
		// The decision is committed; report success with the locally derived state.
		s.log.Warn().Err(err).Str("report_id", req.ReportID).Msg("Failed to reload state after decision")
		updated = ac
		updated.Decisions = append(append([]approval.Decision(nil), ac.Decisions...), *decision)
		updated.State = approval.Resolve(ac.Template, updated.Decisions)
	}

	s.log.Info().
		Str("report_id", req.ReportID).
		Int("step_number", req.StepNumber).
		Str("outcome", string(outcome)).
		Str("acted_by", req.ActedBy).
		Int("active_step", updated.State.ActiveStep).
		Bool("all_complete", updated.State.AllComplete).
		Msg("Approval decision recorded")

	s.notifyDecision(ctx, updated, decision)

	return &DecisionResult{
		Success: true,
		Message: decisionMessage(outcome, req.StepNumber, updated.State),
		State:   updated.State,
	}, nil
}

func decisionMessage(o approval.Outcome, step int, st approval.State) string {
	switch o {
	case approval.OutcomeApproved:
		if st.AllComplete {
			return fmt.Sprintf("step %d approved; report fully approved", step)
		}
		return fmt.Sprintf("step %d approved", step)
	case approval.OutcomeRejected:
		return fmt.Sprintf("step %d rejected", step)
	case approval.OutcomeFeedbackGiven:
		return fmt.Sprintf("feedback recorded on step %d", step)
	default:
		return ""
	}
}

func (s *ApprovalService) notifyDecision(ctx context.Context, ac *ApprovalContext, d *approval.Decision) {
	payload := map[string]interface{}{
		"step_number": d.StepNumber,
		"area_name":   ac.AreaName,
		"active_step": ac.State.ActiveStep,
	}
	submitter := recipients(ac.SubmittedBy)

	switch d.Outcome {
	case approval.OutcomeApproved:
		if ac.State.AllComplete {
			s.notifier.PublishReportEvent(ctx, EventReportApproved, ac.ReportID, d.ApproverID, submitter, payload)
			return
		}
		if next, ok := ac.Template.StepByNumber(ac.State.ActiveStep); ok {
			s.notifier.PublishReportEvent(ctx, EventApprovalRequired, ac.ReportID, d.ApproverID, recipients(next.ApproverID), payload)
		}
	case approval.OutcomeRejected:
		payload["comment"] = d.Comment
		s.notifier.PublishReportEvent(ctx, EventStepRejected, ac.ReportID, d.ApproverID, submitter, payload)
	case approval.OutcomeFeedbackGiven:
		payload["comment"] = d.Comment
		s.notifier.PublishReportEvent(ctx, EventFeedbackGiven, ac.ReportID, d.ApproverID, submitter, payload)
	}
}

// ── Report results ────────────────────────────────────────────────────────────

// SaveReportResults stores item results. The first successful save submits the report.
func (s *ApprovalService) SaveReportResults(ctx context.Context, req *SaveResultsRequest) error {
	ac, err := s.load(ctx, req.ReportID)
	if err != nil {
		return err
	}
	if !approval.IsEditable(ac.Template, ac.State, ac.ReportIsSubmitted, req.UserID) {
		return errors.Forbidden("report can no longer be edited by this user")
	}
	if err := validateResults(ac.Items, req.Results); err != nil {
		return err
	}

	action := ActivityResultsSaved
	if !ac.ReportIsSubmitted {
		action = ActivitySubmitted
	}
	activity := &repository.ActivityEntry{
		ReportID:    req.ReportID,
		Action:      action,
		PerformedBy: req.UserID,
		Metadata:    map[string]interface{}{"items": len(req.Results)},
	}
	if err := s.reports.SaveResults(ctx, req.ReportID, req.UserID, req.Results, !ac.ReportIsSubmitted, activity, s.editGuard(ac.Template, req.UserID, false)); err != nil {
		return err
	}
	s.contexts.Invalidate(ctx, contextCachePrefix+req.ReportID)

	s.log.Info().
		Str("report_id", req.ReportID).
		Str("user_id", req.UserID).
		Str("action", action).
		Int("items", len(req.Results)).
		Msg("Report results saved")

	if !ac.ReportIsSubmitted {
		if first, ok := ac.Template.StepByNumber(1); ok {
			s.notifier.PublishReportEvent(ctx, EventApprovalRequired, req.ReportID, req.UserID, recipients(first.ApproverID),
				map[string]interface{}{"step_number": 1, "area_name": ac.AreaName})
		}
	}
	return nil
}

// EditAndMark lets the step-1 approver correct item results. The returned context shows
// step 1 as Edited. The annotation is not written to the ledger, so the next fetch
// resolves step 1 from recorded decisions again; the edit itself stays in the activity log.
func (s *ApprovalService) EditAndMark(ctx context.Context, req *SaveResultsRequest) (*ApprovalContext, error) {
	ac, err := s.load(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}
	if !ac.ReportIsSubmitted {
		return nil, errors.New(errors.ErrCodeConflict, "report has not been submitted")
	}
	if first := ac.Template.FirstApprover(); first == "" || first != req.UserID {
		return nil, errors.Forbidden("only the first-step approver can edit and mark")
	}
	if !approval.IsEditable(ac.Template, ac.State, ac.ReportIsSubmitted, req.UserID) {
		return nil, errors.Forbidden("report can no longer be edited")
	}
	if err := validateResults(ac.Items, req.Results); err != nil {
		return nil, err
	}

	activity := &repository.ActivityEntry{
		ReportID:    req.ReportID,
		Action:      ActivityEdited,
		PerformedBy: req.UserID,
		Metadata:    map[string]interface{}{"items": len(req.Results), "step_number": 1},
	}
	if err := s.reports.SaveResults(ctx, req.ReportID, req.UserID, req.Results, false, activity, s.editGuard(ac.Template, req.UserID, true)); err != nil {
		return nil, err
	}
	s.contexts.Invalidate(ctx, contextCachePrefix+req.ReportID)

	updated, err := s.load(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}
	updated.State = updated.State.WithOverlay(1, approval.StatusEdited)

	s.log.Info().
		Str("report_id", req.ReportID).
		Str("user_id", req.UserID).
		Int("items", len(req.Results)).
		Msg("Report edited by first-step approver")

	s.notifier.PublishReportEvent(ctx, EventReportEdited, req.ReportID, req.UserID, recipients(ac.SubmittedBy),
		map[string]interface{}{"area_name": ac.AreaName})

	return s.viewFor(updated, req.UserID), nil
}

// validateResults checks updates against the report items. After applying them every
// required item must carry MS or TMS.
func validateResults(items []*repository.ReportItem, updates []repository.ItemResultUpdate) error {
	if len(updates) == 0 {
		return errors.InvalidInput("results", "at least one item result is required")
	}

	merged := make(map[string]repository.ItemResult, len(items))
	for _, it := range items {
		merged[it.ID] = it.Result
	}
	seen := make(map[string]struct{}, len(updates))
	for _, u := range updates {
		if _, ok := merged[u.ItemID]; !ok {
			return errors.InvalidInput("results", fmt.Sprintf("unknown report item %q", u.ItemID))
		}
		if _, dup := seen[u.ItemID]; dup {
			return errors.InvalidInput("results", fmt.Sprintf("duplicate result for item %q", u.ItemID))
		}
		seen[u.ItemID] = struct{}{}
		switch u.Result {
		case repository.ResultMS, repository.ResultTMS, repository.ResultUnset:
		default:
			return errors.InvalidInput("results", fmt.Sprintf("invalid result %q for item %q", u.Result, u.ItemID))
		}
		merged[u.ItemID] = u.Result
	}

	var missing []string
	for _, it := range items {
		if it.Required && merged[it.ID] == repository.ResultUnset {
			missing = append(missing, it.ChecklistItem)
		}
	}
	if len(missing) > 0 {
		return errors.InvalidInput("results", "missing results for required items: "+strings.Join(missing, ", "))
	}
	return nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// editGuard re-applies the editability rule to the ledger as it stands when the report row
// is locked, so a decision committed after load cannot be overtaken by a save.
func (s *ApprovalService) editGuard(tpl approval.Template, userID string, requireSubmitted bool) repository.EditGuard {
	return func(submitted bool, decisions []approval.Decision) error {
		if requireSubmitted && !submitted {
			return errors.New(errors.ErrCodeConflict, "report has not been submitted")
		}
		state := approval.Resolve(tpl, decisions)
		if !approval.IsEditable(tpl, state, submitted, userID) {
			s.log.Warn().
				Str("user_id", userID).
				Int("active_step", state.ActiveStep).
				Bool("all_complete", state.AllComplete).
				Msg("Save rejected: report became read-only before write")
			return errors.Forbidden("report can no longer be edited by this user")
		}
		return nil
	}
}

// load reads template, ledger and report from the stores, bypassing the cache.
func (s *ApprovalService) load(ctx context.Context, reportID string) (*ApprovalContext, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.GetByID(ctx, report.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := approval.ValidateTemplate(*tpl); err != nil {
		s.log.Warn().Err(err).Str("template_id", tpl.ID).Msg("Approval template has irregular step numbering")
	}
	decisions, err := s.decisions.ListByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	ac := &ApprovalContext{
		ReportID:          report.ID,
		AreaName:          report.AreaName,
		Template:          *tpl,
		Decisions:         decisions,
		ReportIsSubmitted: report.IsSubmitted(),
		Items:             report.Items,
		State:             approval.Resolve(*tpl, decisions),
	}
	if report.SubmittedBy != nil {
		ac.SubmittedBy = *report.SubmittedBy
	}
	return ac, nil
}

// viewFor returns a shallow copy of base with caller permissions attached. base may be
// shared between concurrent callers and is never modified.
func (s *ApprovalService) viewFor(base *ApprovalContext, userID string) *ApprovalContext {
	view := *base
	view.Permissions = nil
	if userID != "" {
		view.Permissions = &Permissions{
			UserID:          userID,
			CanEdit:         approval.IsEditable(base.Template, base.State, base.ReportIsSubmitted, userID),
			ActionableSteps: approval.ActionableSteps(base.Template, base.State, userID, base.ReportIsSubmitted),
		}
	}
	return &view
}

type noopNotifier struct{}

func (noopNotifier) PublishReportEvent(context.Context, string, string, string, []string, map[string]interface{}) {}

func recipients(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
