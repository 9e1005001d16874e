package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	grpcServer "github.com/iho/kasa/internal/adapter/grpc/server"
	httpAdapter "github.com/iho/kasa/internal/adapter/http"
	"github.com/iho/kasa/internal/adapter/http/handler"
	"github.com/iho/kasa/internal/adapter/http/middleware"
	"github.com/iho/kasa/internal/app"
	"github.com/iho/kasa/internal/infrastructure/auth"
	"github.com/iho/kasa/internal/infrastructure/config"
	"github.com/iho/kasa/internal/infrastructure/eventpublisher"
	"github.com/iho/kasa/internal/infrastructure/logger"
	"github.com/iho/kasa/internal/infrastructure/metrics"
)

const limiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	a, err := app.New(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer a.Close()

	// Outbox publisher
	publisher := newPublisher(cfg, log)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	worker := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: a.Outbox,
		Publisher:  publisher,
		Observer:   m,
		Logger:     log,
		Interval:   cfg.OutboxInterval,
	})
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).OnLimit(m.RateLimitHits.Inc)
	go sweepLimiters(ctx, rateLimiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerConfig(cfg, a, m, rateLimiter, log)),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.StorageBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var rpc *grpc.Server
	if cfg.GRPCEnabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		rpc = grpcServer.New(grpcConfig(cfg, a, log))
		go func() {
			log.Info().Str("port", cfg.GRPCPort).Msg("starting grpc server")
			if err := rpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if rpc != nil {
		stopGRPC(shutdownCtx, rpc)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func routerConfig(cfg *config.Config, a *app.App, m *metrics.Metrics, rl *middleware.RateLimiter, log zerolog.Logger) httpAdapter.RouterConfig {
	checks := make(map[string]handler.Checker, len(a.Checks))
	for name, check := range a.Checks {
		checks[name] = handler.Checker(check)
	}

	rc := httpAdapter.RouterConfig{
		ShareholderHandler: handler.NewShareholderHandler(a.Shareholders),
		PeriodHandler:      handler.NewPeriodHandler(a.Periods),
		SettlementHandler:  handler.NewSettlementHandler(a.Settlements, cfg.Currency),
		LedgerHandler:      handler.NewLedgerHandler(a.Ledger),
		HealthHandler:      handler.NewHealthHandler(checks),
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        rl,
		Metrics:            m,
		MetricsHandler:     promhttp.Handler(),
		Logger:             log,
	}
	if a.Idempotency != nil {
		rc.IdempotencyStore = a.Idempotency
	}
	if cfg.AuthEnabled {
		rc.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	return rc
}

func grpcConfig(cfg *config.Config, a *app.App, log zerolog.Logger) grpcServer.Config {
	gc := grpcServer.Config{
		Settlements:    a.Settlements,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         log,
	}
	if a.Idempotency != nil {
		gc.IdempotencyStore = a.Idempotency
	}
	if cfg.AuthEnabled {
		gc.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	return gc
}

// stopGRPC drains in-flight calls, falling back to a hard stop once ctx ends.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

func newPublisher(cfg *config.Config, log zerolog.Logger) eventpublisher.Publisher {
	if len(cfg.KafkaBrokers) > 0 {
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
		return eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return eventpublisher.NewLogPublisher(log)
}

func sweepLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(limiterIdle)
		}
	}
}
