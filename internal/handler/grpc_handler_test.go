package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/pesio-ai/be-mt-approvals/internal/approval"
	"github.com/pesio-ai/be-mt-approvals/internal/client"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/auth"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/errors"
	"github.com/pesio-ai/be-mt-approvals/internal/platform/logger"
	"github.com/pesio-ai/be-mt-approvals/internal/repository"
	"github.com/pesio-ai/be-mt-approvals/internal/rpc"
)

func startGRPC(t *testing.T, api ApprovalAPI, verifier *auth.Verifier) *client.ApprovalsGRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryServerInterceptor(verifier)))
	rpc.RegisterApprovalServiceServer(srv, NewGRPCHandler(api, logger.Nop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := client.NewApprovalsGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func asUser(t *testing.T, v *auth.Verifier, userID string) context.Context {
	t.Helper()
	token, err := v.Issue(userID, time.Minute)
	require.NoError(t, err)
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func TestGRPCFetchApprovalContext(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	api := &stubAPI{}
	c := startGRPC(t, api, v)

	ac, err := c.FetchApprovalContext(asUser(t, v, "A"), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Press Line 2", ac.AreaName)
	assert.Equal(t, "A", api.lastUser)
	assert.Equal(t, []int{1}, ac.Permissions.ActionableSteps)

	_, err = c.FetchApprovalContext(asUser(t, v, "A"), "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestGRPCRequiresAuth(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	c := startGRPC(t, &stubAPI{}, v)

	_, err := c.FetchApprovalContext(context.Background(), "r-1")
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
}

func TestGRPCSubmitDecision(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	api := &stubAPI{}
	c := startGRPC(t, api, v)

	res, err := c.SubmitDecision(asUser(t, v, "A"), "r-1", 1, approval.ActionApprove, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, approval.StatusApproved, res.State.Steps[1])
	assert.Equal(t, 2, res.State.ActiveStep)
	assert.Equal(t, "A", api.lastDecide.ActedBy)

	api.decisionErr = errors.Forbidden("cannot act on step 1: step has already been decided")
	_, err = c.SubmitDecision(asUser(t, v, "A"), "r-1", 1, approval.ActionApprove, "")
	assert.True(t, errors.Is(err, errors.ErrCodeForbidden))

	_, err = c.SubmitDecision(asUser(t, v, "A"), "r-1", 0, approval.ActionApprove, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestGRPCSaveResultsAndCurrentUser(t *testing.T) {
	v := auth.NewVerifier("secret", "")
	api := &stubAPI{}
	c := startGRPC(t, api, v)

	err := c.SaveReportResults(asUser(t, v, "tech"), "r-1", []repository.ItemResultUpdate{
		{ItemID: "i-1", Result: repository.ResultTMS, Notes: "oil on floor"},
	})
	require.NoError(t, err)
	require.NotNil(t, api.lastSave)
	assert.Equal(t, "tech", api.lastSave.UserID)
	assert.Equal(t, repository.ResultTMS, api.lastSave.Results[0].Result)

	u, err := c.FetchCurrentUser(asUser(t, v, "A"))
	require.NoError(t, err)
	assert.Equal(t, "A", u.ID)
}
