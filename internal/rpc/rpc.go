// Package rpc defines the monitoring.v1.ApprovalService wire contract shared by the gRPC
// server and client. Messages are google.protobuf.Struct values carrying the same JSON
// documents the HTTP API uses.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "monitoring.v1.ApprovalService"

const (
	MethodFetchApprovalContext = "FetchApprovalContext"
	MethodSubmitDecision       = "SubmitDecision"
	MethodSaveReportResults    = "SaveReportResults"
	MethodFetchCurrentUser     = "FetchCurrentUser"
)

// FullMethod returns the gRPC path of a method, e.g. /monitoring.v1.ApprovalService/SubmitDecision.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ApprovalServiceServer is the server API for monitoring.v1.ApprovalService.
type ApprovalServiceServer interface {
	FetchApprovalContext(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitDecision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveReportResults(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchCurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(ApprovalServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(ApprovalServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(ApprovalServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ApprovalServiceDesc describes monitoring.v1.ApprovalService for grpc.Server registration.
var ApprovalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodFetchApprovalContext,
			Handler:    unary(MethodFetchApprovalContext, ApprovalServiceServer.FetchApprovalContext),
		},
		{
			MethodName: MethodSubmitDecision,
			Handler:    unary(MethodSubmitDecision, ApprovalServiceServer.SubmitDecision),
		},
		{
			MethodName: MethodSaveReportResults,
			Handler:    unary(MethodSaveReportResults, ApprovalServiceServer.SaveReportResults),
		},
		{
			MethodName: MethodFetchCurrentUser,
			Handler:    unary(MethodFetchCurrentUser, ApprovalServiceServer.FetchCurrentUser),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "monitoring/v1/approval.proto",
}

// RegisterApprovalServiceServer registers srv on s.
func RegisterApprovalServiceServer(s grpc.ServiceRegistrar, srv ApprovalServiceServer) {
	s.RegisterService(&ApprovalServiceDesc, srv)
}

// Encode converts v into a Struct through its JSON form. v must encode as a JSON object.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// Decode fills v from the JSON form of s. A nil Struct decodes as an empty object.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
