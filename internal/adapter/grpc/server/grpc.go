package server

import (
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/iho/kasa/internal/adapter/grpc/api"
	"github.com/iho/kasa/internal/adapter/grpc/middleware"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/usecase"
)

// Config holds dependencies for the gRPC server.
type Config struct {
	Settlements settlementUseCase
	// TokenVerifier enables bearer auth when set.
	TokenVerifier    middleware.TokenVerifier
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           zerolog.Logger
}

// methodRoles lists methods that need more than a viewer.
var methodRoles = map[string]domain.Role{
	api.MethodClose: domain.RoleOperator,
}

var mutatingMethods = map[string]bool{
	api.MethodClose: true,
}

// New builds a grpc.Server serving kasa.v1.SettlementService.
func New(cfg Config) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{middleware.LoggingInterceptor(cfg.Logger)}
	if cfg.TokenVerifier != nil {
		interceptors = append(interceptors, middleware.AuthInterceptor(cfg.TokenVerifier, methodRoles))
	}
	if cfg.IdempotencyStore != nil {
		interceptors = append(interceptors, middleware.IdempotencyInterceptor(cfg.IdempotencyStore, cfg.IdempotencyTTL, mutatingMethods))
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterSettlementServiceServer(s, NewSettlementServer(cfg.Settlements))
	return s
}
