package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/iho/kasa/internal/adapter/grpc/api"
	grpcServer "github.com/iho/kasa/internal/adapter/grpc/server"
	httpAdapter "github.com/iho/kasa/internal/adapter/http"
	"github.com/iho/kasa/internal/adapter/http/middleware"
	"github.com/iho/kasa/internal/app"
	"github.com/iho/kasa/internal/infrastructure/config"
	"github.com/iho/kasa/internal/infrastructure/eventpublisher"
	"github.com/iho/kasa/internal/infrastructure/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageBackend:  config.BackendBolt,
		BoltPath:        filepath.Join(t.TempDir(), "kasa.db"),
		ShortfallPolicy: "proportional",
		Currency:        "TRY",
		IdempotencyTTL:  time.Hour,
		JWTSecret:       "secret",
		JWTExpiration:   time.Hour,
	}
}

func TestNewPublisher(t *testing.T) {
	cfg := testConfig(t)

	_, ok := newPublisher(cfg, zerolog.Nop()).(*eventpublisher.LogPublisher)
	assert.True(t, ok, "expected log publisher without brokers")

	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaTopic = "kasa.events"
	kp, ok := newPublisher(cfg, zerolog.Nop()).(*eventpublisher.KafkaPublisher)
	require.True(t, ok, "expected kafka publisher with brokers")
	assert.NoError(t, kp.Close())
}

func TestRouterConfig_ServesSeededBooks(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	m := metrics.New(prometheus.NewRegistry())

	a, err := app.New(ctx, cfg, zerolog.Nop(), m)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Seeder.Seed(ctx, "test")
	require.NoError(t, err)

	rc := routerConfig(cfg, a, m, middleware.NewRateLimiter(100, 100), zerolog.Nop())
	assert.Nil(t, rc.TokenVerifier)
	assert.Nil(t, rc.IdempotencyStore)

	router := httpAdapter.NewRouter(rc)

	for _, path := range []string{"/ready", "/api/v1/periods/2025-12/distribution", "/api/v1/shareholders"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/periods/2025-12/close", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouterConfig_AuthEnabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.AuthEnabled = true

	a, err := app.New(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	rc := routerConfig(cfg, a, metrics.New(prometheus.NewRegistry()), nil, zerolog.Nop())
	require.NotNil(t, rc.TokenVerifier)

	rec := httptest.NewRecorder()
	httpAdapter.NewRouter(rc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/carry", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGRPCConfig_ClosesSeededMonth(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := app.New(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Seeder.Seed(ctx, "test")
	require.NoError(t, err)

	gc := grpcConfig(cfg, a, zerolog.Nop())
	assert.Nil(t, gc.TokenVerifier)

	lis := bufconn.Listen(1 << 20)
	s := grpcServer.New(gc)
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := api.NewSettlementClient(conn)
	settlement, err := client.Close(ctx, &api.CloseRequest{Month: "2025-12"})
	require.NoError(t, err)
	assert.Equal(t, "grpc", settlement.ClosedBy)

	carry, err := client.Carry(ctx, &api.CarryRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, carry.Balances)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	stopGRPC(stopCtx, s)
}
