package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/kasa/internal/domain"
)

// MapDomainError converts domain errors to gRPC status errors. Unknown errors
// become Internal without their message.
func MapDomainError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	// Not Found errors
	case errors.Is(err, domain.ErrPeriodNotFound),
		errors.Is(err, domain.ErrNoSettlement):
		return status.Error(codes.NotFound, err.Error())

	// Invalid Argument errors
	case errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidHolder),
		errors.Is(err, domain.ErrDuplicateHolder),
		errors.Is(err, domain.ErrUnknownPolicy):
		return status.Error(codes.InvalidArgument, err.Error())

	// Books that cannot be settled as they are
	case domain.IsConfigurationError(err),
		domain.IsMissingData(err),
		errors.Is(err, domain.ErrPeriodOutOfOrder):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, domain.ErrPeriodAlreadyClosed):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrPeriodLocked):
		return status.Error(codes.Aborted, err.Error())

	// Context errors (timeouts, cancellations)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "operation timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "operation was canceled")

	default:
		return status.Error(codes.Internal, "an internal error occurred")
	}
}
