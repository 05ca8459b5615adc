package cli

import (
	"context"
	"fmt"
	"net/http"

	"lightning-timesheet/config"
	"lightning-timesheet/internal/adapter/storage/memory"
	pgStorage "lightning-timesheet/internal/adapter/storage/postgres"
	redisStorage "lightning-timesheet/internal/adapter/storage/redis"
	sqliteStorage "lightning-timesheet/internal/adapter/storage/sqlite"
	"lightning-timesheet/internal/adapter/wallet"
	"lightning-timesheet/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// storage is the ledger backend selected by ledger.driver.
type storage struct {
	Ledger   ports.LedgerRepository
	Audit    ports.AuditRepository // nil unless the driver persists audit logs
	Checkers []ports.HealthChecker
	closers  []func()
}

// Close releases every underlying connection.
func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage connects the configured ledger driver and applies its schema.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	st := &storage{}

	switch cfg.Ledger.Driver {
	case "", driverMemory:
		st.Ledger = memory.NewLedgerRepo()
		log.Warn().Msg("using in-memory ledger, settlement records are lost on restart")

	case driverSQLite:
		db, err := sqliteStorage.OpenDB(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		repo := sqliteStorage.NewLedgerRepo(db)
		st.Ledger = repo
		st.Checkers = append(st.Checkers, repo)
		log.Info().Str("path", cfg.Ledger.SQLitePath).Msg("SQLite ledger opened")

	case driverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		st.Ledger = pgStorage.NewLedgerRepo(pool)
		st.Audit = pgStorage.NewAuditRepo(pool)
		st.Checkers = append(st.Checkers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL ledger connected")

	default:
		return nil, fmt.Errorf("unknown ledger driver %q (want memory, sqlite or postgres)", cfg.Ledger.Driver)
	}

	return st, nil
}

// openRedis connects Redis when enabled. It returns a nil client otherwise.
func openRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*goredis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("Redis disabled, rate limiting and settlement guard are off")
		return nil, nil
	}
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// newWalletClient builds the provider adapter. Per-request timeouts come from
// provider.timeout, so the underlying client carries none of its own.
func newWalletClient(cfg *config.Config, log zerolog.Logger) *wallet.LNbitsClient {
	return wallet.NewLNbitsClient(cfg.Provider, &http.Client{}, log)
}
