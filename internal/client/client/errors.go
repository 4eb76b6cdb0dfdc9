package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// mapError turns a gRPC status into a sentinel error, keeping the server's
// message.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.Unavailable:
		sentinel = ErrUnavailable
	case codes.Unauthenticated:
		sentinel = ErrUnauthorized
	case codes.NotFound:
		sentinel = common.ErrorNotFound
	case codes.PermissionDenied:
		sentinel = common.ErrorForbidden
	case codes.FailedPrecondition:
		sentinel = common.ErrorInvalidState
	case codes.InvalidArgument:
		sentinel = common.ErrorValidation
	case codes.Aborted:
		sentinel = common.ErrorTransactionFailure
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
