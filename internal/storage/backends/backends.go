// Package backends opens the configured set of state stores.
package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradegate/internal/storage"
	chstore "tradegate/internal/storage/clickhouse"
	"tradegate/internal/storage/file"
	"tradegate/internal/storage/memory"
	"tradegate/internal/storage/migrations"
	"tradegate/internal/storage/postgres"
	"tradegate/internal/storage/redis"
)

// Backend names.
const (
	Memory   = "memory"
	File     = "file"
	Postgres = "postgres"
)

// Options selects the stores to open.
type Options struct {
	Backend       string
	Dir           string // file backend
	PostgresDSN   string // postgres backend
	RedisURL      string        // optional, replaces the idempotency store
	RedisTTL      time.Duration // redis record expiry, 0 keeps records forever
	ClickHouseDSN string        // optional, replaces the decision journal
	Logger        zerolog.Logger
}

// Stores is the full set of engine state stores.
type Stores struct {
	RiskState   storage.RiskStateStore
	Positions   storage.PositionStore
	Idempotency storage.IdempotencyStore
	Journal     storage.DecisionJournal
}

// Open creates the stores for opts.Backend and applies the optional redis and
// clickhouse overrides. The returned close function releases every connection
// and is safe to call when Open failed.
func Open(ctx context.Context, opts Options) (*Stores, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Stores, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	stores := &Stores{}
	switch opts.Backend {
	case Memory:
		stores.RiskState = memory.NewRiskStateStore()
		stores.Positions = memory.NewPositionStore()
		stores.Idempotency = memory.NewIdempotencyStore()
		stores.Journal = memory.NewDecisionJournal()

	case File, "":
		if opts.Dir == "" {
			return fail(fmt.Errorf("file backend: %w: empty state dir", storage.ErrInvalidInput))
		}
		positions, err := file.NewPositionStore(opts.Dir)
		if err != nil {
			return fail(fmt.Errorf("open position store: %w", err))
		}
		idem, err := file.NewIdempotencyStore(opts.Dir)
		if err != nil {
			return fail(fmt.Errorf("open idempotency store: %w", err))
		}
		stores.RiskState = file.NewRiskStateStore(opts.Dir)
		stores.Positions = positions
		stores.Idempotency = idem
		stores.Journal = file.NewDecisionJournal(opts.Dir)

	case Postgres:
		pool, err := postgres.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
		if err := migratePostgres(ctx, pool, opts.Logger); err != nil {
			return fail(err)
		}
		stores.RiskState = postgres.NewRiskStateStore(pool)
		stores.Positions = postgres.NewPositionStore(pool)
		stores.Idempotency = postgres.NewIdempotencyStore(pool)
		// Postgres keeps no journal table.
		stores.Journal = memory.NewDecisionJournal()
		if opts.ClickHouseDSN == "" {
			opts.Logger.Warn().Msg("no clickhouse dsn, decision journal kept in memory only")
		}

	default:
		return fail(fmt.Errorf("unknown storage backend %q", opts.Backend))
	}

	if opts.RedisURL != "" {
		idem, err := redis.NewIdempotencyStore(ctx, opts.RedisURL, redis.WithTTL(opts.RedisTTL))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = idem.Close() })
		stores.Idempotency = idem
	}

	if opts.ClickHouseDSN != "" {
		conn, err := chstore.Open(ctx, opts.ClickHouseDSN)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		if err := migrateClickhouse(ctx, conn, opts.Logger); err != nil {
			return fail(err)
		}
		stores.Journal = chstore.NewDecisionJournal(conn)
	}

	opts.Logger.Info().
		Str("backend", opts.Backend).
		Bool("redis_ledger", opts.RedisURL != "").
		Bool("clickhouse_journal", opts.ClickHouseDSN != "").
		Msg("state stores opened")

	return stores, closeAll, nil
}

func migratePostgres(ctx context.Context, pool *postgres.Pool, log zerolog.Logger) error {
	all, err := migrations.Postgres()
	if err != nil {
		return err
	}
	n, err := pool.Migrate(ctx, all)
	if err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	if n > 0 {
		log.Info().Int("applied", n).Msg("postgres schema migrated")
	}
	return nil
}

func migrateClickhouse(ctx context.Context, conn *chstore.Conn, log zerolog.Logger) error {
	all, err := migrations.Clickhouse()
	if err != nil {
		return err
	}
	n, err := conn.Migrate(ctx, all)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	if n > 0 {
		log.Info().Int("applied", n).Str("database", conn.Database()).Msg("clickhouse schema migrated")
	}
	return nil
}
