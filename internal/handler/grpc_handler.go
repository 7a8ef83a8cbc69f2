package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
	"github.com/pesio-ai/be-mt-approvals/internal/rpc"
)

// GRPCHandler implements monitoring.v1.ApprovalService.
type GRPCHandler struct {
	service ApprovalAPI
	logger  *logger.Logger
}

var _ rpc.ApprovalServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(service ApprovalAPI, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		service: service,
		logger:  log.Component("grpc"),
	}
}

// FetchApprovalContext returns the approval context of a report.
func (h *GRPCHandler) FetchApprovalContext(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	reportID := in.GetFields()["report_id"].GetStringValue()
	h.logger.Debug().Str("report_id", reportID).Msg("gRPC FetchApprovalContext called")

	if reportID == "" {
		return nil, h.fail(errors.InvalidInput("report_id", "report id is required"), "Invalid request")
	}
	ac, err := h.service.FetchApprovalContext(ctx, reportID, userID(ctx))
	if err != nil {
		return nil, h.fail(err, "Failed to fetch approval context")
	}
	return h.reply(ac)
}

// SubmitDecision records approve, reject or feedback on a step.
func (h *GRPCHandler) SubmitDecision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body decisionBody
	if err := rpc.Decode(in, &body); err != nil {
		return nil, h.fail(errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request"), "Invalid request")
	}
	h.logger.Info().
		Str("report_id", body.ReportID).
		Int("step_number", body.StepNumber).
		Str("action", body.Action).
		Msg("gRPC SubmitDecision called")

	req, err := body.toRequest(userID(ctx))
	if err != nil {
		return nil, h.fail(err, "Invalid decision request")
	}
	res, err := h.service.SubmitDecision(ctx, req)
	if err != nil {
		return nil, h.fail(err, "Failed to submit decision")
	}
	return h.reply(res)
}

// SaveReportResults stores item results.
func (h *GRPCHandler) SaveReportResults(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body resultsBody
	if err := rpc.Decode(in, &body); err != nil {
		return nil, h.fail(errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request"), "Invalid request")
	}
	h.logger.Info().
		Str("report_id", body.ReportID).
		Int("items", len(body.Results)).
		Msg("gRPC SaveReportResults called")

	req, err := body.toRequest(userID(ctx))
	if err != nil {
		return nil, h.fail(err, "Invalid results request")
	}
	if err := h.service.SaveReportResults(ctx, req); err != nil {
		return nil, h.fail(err, "Failed to save report results")
	}
	return structpb.NewStruct(map[string]interface{}{"success": true})
}

// FetchCurrentUser returns the authenticated caller's profile.
func (h *GRPCHandler) FetchCurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	user, err := h.service.FetchCurrentUser(ctx, userID(ctx))
	if err != nil {
		return nil, h.fail(err, "Failed to fetch current user")
	}
	return h.reply(user)
}

func (h *GRPCHandler) reply(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, h.fail(errors.Wrap(err, errors.ErrCodeInternal, "failed to encode response"), "Failed to encode response")
	}
	return out, nil
}

// fail logs err once and converts it to a gRPC status.
func (h *GRPCHandler) fail(err error, msg string) error {
	ev := h.logger.Warn()
	if errors.CodeOf(err) == errors.ErrCodeInternal {
		ev = h.logger.Error()
	}
	ev.Err(err).Str("code", string(errors.CodeOf(err))).Msg(msg)
	return errors.GRPCStatus(err)
}
