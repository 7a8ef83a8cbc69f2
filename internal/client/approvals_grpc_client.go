package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
	"github.com/pesio-ai/be-mt-approvals/internal/rpc"
	"github.com/pesio-ai/be-mt-approvals/internal/service"
)

// ApprovalsGRPCClient calls monitoring.v1.ApprovalService.
type ApprovalsGRPCClient struct {
	conn *grpc.ClientConn
}

// NewApprovalsGRPCClient creates a client for the approval service at addr. Extra options
// are appended after the defaults (insecure transport, metadata forwarding).
func NewApprovalsGRPCClient(addr string, opts ...grpc.DialOption) (*ApprovalsGRPCClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(forwardMetadata),
	}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &ApprovalsGRPCClient{conn: conn}, nil
}

// Close releases the underlying gRPC connection.
func (c *ApprovalsGRPCClient) Close() error {
	return c.conn.Close()
}

func (c *ApprovalsGRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := rpc.Encode(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		return errors.FromGRPC(err)
	}
	if resp == nil {
		return nil
	}
	if err := rpc.Decode(out, resp); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "invalid response")
	}
	return nil
}

// FetchApprovalContext returns the approval context of a report as seen by the caller.
func (c *ApprovalsGRPCClient) FetchApprovalContext(ctx context.Context, reportID string) (*service.ApprovalContext, error) {
	var ac service.ApprovalContext
	if err := c.invoke(ctx, rpc.MethodFetchApprovalContext, map[string]string{"report_id": reportID}, &ac); err != nil {
		return nil, err
	}
	return &ac, nil
}

// SubmitDecision approves, rejects or gives feedback on a step.
func (c *ApprovalsGRPCClient) SubmitDecision(
	ctx context.Context,
	reportID string,
	stepNumber int,
	action approval.Action,
	comment string,
) (*service.DecisionResult, error) {
	req := map[string]any{
		"report_id":   reportID,
		"step_number": stepNumber,
		"action":      string(action),
		"comment":     comment,
	}
	var res service.DecisionResult
	if err := c.invoke(ctx, rpc.MethodSubmitDecision, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveReportResults stores item results. The first save submits the report.
func (c *ApprovalsGRPCClient) SaveReportResults(ctx context.Context, reportID string, results []repository.ItemResultUpdate) error {
	req := map[string]any{
		"report_id": reportID,
		"results":   results,
	}
	return c.invoke(ctx, rpc.MethodSaveReportResults, req, nil)
}

// FetchCurrentUser returns the profile of the authenticated caller.
func (c *ApprovalsGRPCClient) FetchCurrentUser(ctx context.Context) (*repository.User, error) {
	var u repository.User
	if err := c.invoke(ctx, rpc.MethodFetchCurrentUser, map[string]string{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
