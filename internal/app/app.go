// Package app wires configuration, storage and use cases together for the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	boltRepo "github.com/iho/kasa/internal/adapter/repository/bolt"
	postgresRepo "github.com/iho/kasa/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/kasa/internal/adapter/repository/redis"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/infrastructure/config"
	"github.com/iho/kasa/internal/infrastructure/metrics"
	"github.com/iho/kasa/internal/infrastructure/postgres"
	"github.com/iho/kasa/internal/infrastructure/redis"
	"github.com/iho/kasa/internal/usecase"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// App holds the wired use cases and the resources behind them.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Shareholders *usecase.ShareholderUseCase
	Periods      *usecase.PeriodUseCase
	Settlements  *usecase.SettlementUseCase
	Seeder       *usecase.SeedUseCase
	Ledger       *usecase.LedgerUseCase

	Outbox      usecase.OutboxRepository
	Idempotency usecase.IdempotencyStore
	Checks      map[string]HealthCheck

	closers []func()
}

type repositories struct {
	tx          usecase.TransactionManager
	holders     usecase.ShareholderRepository
	periods     usecase.PeriodRepository
	carry       usecase.CarryRepository
	settlements usecase.SettlementRepository
	audit       usecase.AuditRepository
	outbox      usecase.OutboxRepository
	retrier     usecase.Retrier
}

// New opens the configured storage backend and builds every use case. m may
// be nil. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*App, error) {
	policy, err := domain.PolicyByName(cfg.ShortfallPolicy)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Checks: make(map[string]HealthCheck),
	}

	repos, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	settlementCfg := usecase.SettlementConfig{
		TxManager:      repos.tx,
		HolderRepo:     repos.holders,
		PeriodRepo:     repos.periods,
		CarryRepo:      repos.carry,
		SettlementRepo: repos.settlements,
		AuditRepo:      repos.audit,
		OutboxRepo:     repos.outbox,
		IDGen:          postgresRepo.NewULIDGenerator(),
		Retrier:        repos.retrier,
		Engine:         domain.NewEngine(domain.WithPolicy(policy), domain.WithStrictKeys(cfg.StrictKeys)),
		LockTTL:        cfg.LockTTL,
		Logger:         logger,
	}
	if m != nil {
		settlementCfg.Recorder = m
	}

	if cfg.RedisEnabled {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		a.attachRedis(client, &settlementCfg)
		logger.Info().Msg("connected to redis")
	}

	idGen := postgresRepo.NewULIDGenerator()
	a.Outbox = repos.outbox
	a.Settlements = usecase.NewSettlementUseCase(settlementCfg)
	a.Shareholders = usecase.NewShareholderUseCase(repos.tx, repos.holders, repos.audit, repos.outbox, idGen, logger)
	a.Periods = usecase.NewPeriodUseCase(repos.tx, repos.periods, repos.settlements, repos.audit, repos.outbox, idGen, logger)
	a.Seeder = usecase.NewSeedUseCase(repos.tx, repos.holders, repos.periods, repos.carry, repos.audit, idGen, logger)
	a.Ledger = usecase.NewLedgerUseCase(repos.carry, repos.settlements)

	return a, nil
}

func (a *App) attachRedis(client *goredis.Client, settlementCfg *usecase.SettlementConfig) {
	settlementCfg.Locker = redisRepo.NewPeriodLock(client)
	settlementCfg.Cache = redisRepo.NewCache(client)
	a.Idempotency = redisRepo.NewIdempotencyStore(client)
}

func (a *App) openStorage(ctx context.Context) (*repositories, error) {
	cfg := a.Config

	switch cfg.StorageBackend {
	case config.BackendBolt:
		store, err := boltRepo.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.Checks["bolt"] = store.Ping
		a.Logger.Info().Str("path", cfg.BoltPath).Msg("opened bolt store")

		return &repositories{
			tx:          store.TxManager(),
			holders:     store.Shareholders(),
			periods:     store.Periods(),
			carry:       store.Carry(),
			settlements: store.Settlements(),
			audit:       store.Audit(),
			outbox:      store.Outbox(),
		}, nil

	case config.BackendPostgres:
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, a.Logger).Up(); err != nil {
			return nil, err
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.Checks["postgres"] = pool.Ping
		a.Logger.Info().Msg("connected to postgres")

		return &repositories{
			tx:          postgresRepo.NewTxManager(pool),
			holders:     postgresRepo.NewShareholderRepository(pool),
			periods:     postgresRepo.NewPeriodRepository(pool),
			carry:       postgresRepo.NewCarryRepository(pool),
			settlements: postgresRepo.NewSettlementRepository(pool),
			audit:       postgresRepo.NewAuditRepository(pool),
			outbox:      postgresRepo.NewOutboxRepository(pool),
			retrier:     postgresRepo.NewRetrier(a.Logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases storage and redis connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
