package server

import (
	"context"

	"github.com/iho/kasa/internal/adapter/grpc/api"
	"github.com/iho/kasa/internal/adapter/grpc/converter"
	grpcErrors "github.com/iho/kasa/internal/adapter/grpc/errors"
	"github.com/iho/kasa/internal/adapter/grpc/middleware"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

const anonymousActor = "grpc"

type settlementUseCase interface {
	Preview(ctx context.Context, month string) (*domain.DistributionResult, error)
	Close(ctx context.Context, input usecase.ClosePeriodInput) (*domain.Settlement, error)
	Get(ctx context.Context, month string) (*domain.Settlement, error)
	Carry(ctx context.Context) (domain.CarryState, error)
}

// SettlementServer implements api.SettlementServiceServer.
type SettlementServer struct {
	settlementUC settlementUseCase
}

// NewSettlementServer creates a new SettlementServer
func NewSettlementServer(settlementUC settlementUseCase) *SettlementServer {
	return &SettlementServer{settlementUC: settlementUC}
}

// Preview computes a month's distribution without saving it
func (s *SettlementServer) Preview(ctx context.Context, req *api.PeriodRequest) (*api.Distribution, error) {
	result, err := s.settlementUC.Preview(ctx, req.Month)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}
	return converter.DistributionToAPI(result), nil
}

// Close settles a month
func (s *SettlementServer) Close(ctx context.Context, req *api.CloseRequest) (*api.Settlement, error) {
	actor := anonymousActor
	if user, ok := middleware.GetUserFromContext(ctx); ok {
		actor = user.ID
	}

	settlement, err := s.settlementUC.Close(ctx, usecase.ClosePeriodInput{
		Month: req.Month,
		Force: req.Force,
		Actor: actor,
	})
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}
	return converter.SettlementToAPI(settlement), nil
}

// GetSettlement returns a closed month
func (s *SettlementServer) GetSettlement(ctx context.Context, req *api.PeriodRequest) (*api.Settlement, error) {
	settlement, err := s.settlementUC.Get(ctx, req.Month)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}
	return converter.SettlementToAPI(settlement), nil
}

// Carry returns carried balances
func (s *SettlementServer) Carry(ctx context.Context, _ *api.CarryRequest) (*api.Carry, error) {
	carry, err := s.settlementUC.Carry(ctx)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}
	return converter.CarryToAPI(carry), nil
}
