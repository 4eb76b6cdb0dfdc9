package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrorTransactionFailure):
		return codes.Aborted
	case errors.Is(err, common.ErrorNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrorInvalidState):
		return codes.FailedPrecondition
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrorForbidden):
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// toStatus converts an engine error into a gRPC status. Internal failures
// are logged and reported without details.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	code := codeOf(err)
	if code == codes.Internal {
		s.logger.Error(ctx, "request failed", "method", method, "error", err.Error())
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}

	s.logger.Info(ctx, "request rejected", "method", method, "code", code.String(), "error", err.Error())
	return status.Error(code, err.Error())
}
