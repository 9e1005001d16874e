package errors_test

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcerrors "github.com/iho/kasa/internal/adapter/grpc/errors"
	"github.com/iho/kasa/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil error", nil, codes.OK},
		{"period not found", domain.ErrPeriodNotFound, codes.NotFound},
		{"no settlement", fmt.Errorf("%w: 2025-12", domain.ErrNoSettlement), codes.NotFound},
		{"invalid month", domain.ErrInvalidMonth, codes.InvalidArgument},
		{"invalid amount", domain.ErrInvalidAmount, codes.InvalidArgument},
		{"duplicate holder", domain.ErrDuplicateHolder, codes.InvalidArgument},
		{"unknown policy", domain.ErrUnknownPolicy, codes.InvalidArgument},
		{"bad registry", fmt.Errorf("%w: sum 99", domain.ErrInvalidConfiguration), codes.FailedPrecondition},
		{"unknown shareholder", domain.ErrUnknownShareholder, codes.FailedPrecondition},
		{"missing data", domain.ErrMissingData, codes.FailedPrecondition},
		{"out of order", domain.ErrPeriodOutOfOrder, codes.FailedPrecondition},
		{"already closed", domain.ErrPeriodAlreadyClosed, codes.AlreadyExists},
		{"locked", domain.ErrPeriodLocked, codes.Aborted},
		{"deadline exceeded", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"unknown error", stdErrors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := grpcerrors.MapDomainError(tt.err)

			if tt.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}

			st, ok := status.FromError(got)
			if !ok {
				t.Fatalf("expected status error, got %v", got)
			}
			if st.Code() != tt.want {
				t.Fatalf("expected code %v, got %v", tt.want, st.Code())
			}
		})
	}
}

func TestMapDomainError_HidesInternalDetails(t *testing.T) {
	got := grpcerrors.MapDomainError(stdErrors.New("pq: password authentication failed"))
	if st, _ := status.FromError(got); st.Message() != "an internal error occurred" {
		t.Fatalf("expected generic message, got %q", st.Message())
	}
}
