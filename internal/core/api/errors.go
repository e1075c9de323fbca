package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/quotekeeper/internal/types"
)

// Code maps a service error to a gRPC code.
//   - validation (quote input, rule, unknown field type) -> INVALID_ARGUMENT
//   - missing rule or quote -> NOT_FOUND
//   - store failures -> UNAVAILABLE
//   - context timeouts -> DEADLINE_EXCEEDED
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, types.ErrInvalidQuoteInput),
		errors.Is(err, types.ErrInvalidRule),
		errors.Is(err, types.ErrUnknownFieldType):
		return codes.InvalidArgument
	case errors.Is(err, types.ErrRuleNotFound), errors.Is(err, types.ErrQuoteNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, ErrUnavailable):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToStatus converts a service error to a gRPC status error. Errors that
// already carry a status pass through.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}
