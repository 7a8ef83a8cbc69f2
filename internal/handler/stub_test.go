package handler

import (
	"context"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
	"github.com/pesio-ai/be-mt-approvals/internal/service"
)

// stubAPI answers from fixed data and records the last request it saw.
type stubAPI struct {
	decisionErr error
	lastUser    string
	lastDecide  *service.SubmitDecisionRequest
	lastSave    *service.SaveResultsRequest
}

var stubTemplate = approval.Template{
	ID: "tpl",
	Steps: []approval.Step{
		{Number: 1, ApproverID: "A"},
		{Number: 2, ApproverID: "B"},
	},
}

func (s *stubAPI) FetchApprovalContext(_ context.Context, reportID, userID string) (*service.ApprovalContext, error) {
	s.lastUser = userID
	if reportID != "r-1" {
		return nil, errors.NotFound("monitoring_report", reportID)
	}
	return &service.ApprovalContext{
		ReportID:          reportID,
		AreaName:          "Press Line 2",
		Template:          stubTemplate,
		ReportIsSubmitted: true,
		State:             approval.Resolve(stubTemplate, nil),
		Permissions:       &service.Permissions{UserID: userID, CanEdit: true, ActionableSteps: []int{1}},
	}, nil
}

func (s *stubAPI) SubmitDecision(_ context.Context, req *service.SubmitDecisionRequest) (*service.DecisionResult, error) {
	s.lastDecide = req
	if s.decisionErr != nil {
		return nil, s.decisionErr
	}
	decisions := []approval.Decision{{StepNumber: req.StepNumber, ApproverID: req.ActedBy, Outcome: approval.OutcomeApproved}}
	return &service.DecisionResult{Success: true, Message: "step 1 approved", State: approval.Resolve(stubTemplate, decisions)}, nil
}

func (s *stubAPI) SaveReportResults(_ context.Context, req *service.SaveResultsRequest) error {
	s.lastSave = req
	return nil
}

func (s *stubAPI) EditAndMark(_ context.Context, req *service.SaveResultsRequest) (*service.ApprovalContext, error) {
	s.lastSave = req
	return &service.ApprovalContext{
		ReportID: req.ReportID,
		Template: stubTemplate,
		State:    approval.Resolve(stubTemplate, nil).WithOverlay(1, approval.StatusEdited),
	}, nil
}

func (s *stubAPI) FetchCurrentUser(_ context.Context, userID string) (*repository.User, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "no authenticated user")
	}
	return &repository.User{ID: userID, DisplayName: "Area Supervisor"}, nil
}

func (s *stubAPI) ListPendingForUser(_ context.Context, userID string) ([]service.PendingApproval, error) {
	return []service.PendingApproval{{ReportID: "r-1", AreaName: "Press Line 2", StepNumber: 1}}, nil
}

func (s *stubAPI) GetActivity(_ context.Context, reportID string) ([]*repository.ActivityEntry, error) {
	return []*repository.ActivityEntry{{ID: 1, ReportID: reportID, Action: "submitted", PerformedBy: "tech"}}, nil
}
