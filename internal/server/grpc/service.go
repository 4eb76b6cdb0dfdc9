package grpc

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// VaultKeeperServer is the server API of the vaultkeeper.v1.VaultKeeper
// service. Every message is a google.protobuf.Struct holding one of the
// shared message types.
type VaultKeeperServer interface {
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordAccessEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetThreatAssessment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitDualKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DecideDualKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveDualKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingDualKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestEmergency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssessEmergency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveEmergency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DenyEmergency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyEmergencyPass(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConsumeEmergencyPass(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InviteNominee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptNominee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetNomineeStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(VaultKeeperServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, fn unaryFunc) grpc.MethodDesc {
	fullMethod := shared.FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(VaultKeeperServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(VaultKeeperServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serviceDesc registers the service declared in
// internal/proto/vaultkeeper/v1/vaultkeeper.proto.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: shared.ServiceName,
	HandlerType: (*VaultKeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(shared.MethodSignIn, VaultKeeperServer.SignIn),
		unaryHandler(shared.MethodPing, VaultKeeperServer.Ping),
		unaryHandler(shared.MethodRecordAccessEvent, VaultKeeperServer.RecordAccessEvent),
		unaryHandler(shared.MethodGetThreatAssessment, VaultKeeperServer.GetThreatAssessment),
		unaryHandler(shared.MethodSubmitDualKey, VaultKeeperServer.SubmitDualKey),
		unaryHandler(shared.MethodDecideDualKey, VaultKeeperServer.DecideDualKey),
		unaryHandler(shared.MethodResolveDualKey, VaultKeeperServer.ResolveDualKey),
		unaryHandler(shared.MethodListPendingDualKey, VaultKeeperServer.ListPendingDualKey),
		unaryHandler(shared.MethodRequestTransfer, VaultKeeperServer.RequestTransfer),
		unaryHandler(shared.MethodAcceptTransfer, VaultKeeperServer.AcceptTransfer),
		unaryHandler(shared.MethodCancelTransfer, VaultKeeperServer.CancelTransfer),
		unaryHandler(shared.MethodRequestEmergency, VaultKeeperServer.RequestEmergency),
		unaryHandler(shared.MethodAssessEmergency, VaultKeeperServer.AssessEmergency),
		unaryHandler(shared.MethodApproveEmergency, VaultKeeperServer.ApproveEmergency),
		unaryHandler(shared.MethodDenyEmergency, VaultKeeperServer.DenyEmergency),
		unaryHandler(shared.MethodVerifyEmergencyPass, VaultKeeperServer.VerifyEmergencyPass),
		unaryHandler(shared.MethodConsumeEmergencyPass, VaultKeeperServer.ConsumeEmergencyPass),
		unaryHandler(shared.MethodInviteNominee, VaultKeeperServer.InviteNominee),
		unaryHandler(shared.MethodAcceptNominee, VaultKeeperServer.AcceptNominee),
		unaryHandler(shared.MethodSetNomineeStatus, VaultKeeperServer.SetNomineeStatus),
		unaryHandler(shared.MethodDeleteAccount, VaultKeeperServer.DeleteAccount),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vaultkeeper/v1/vaultkeeper.proto",
}
