package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolConfig configures the pool shared by OwnerStore and EmployeeStore.
// Durations are in seconds; zero values take the defaults in applyDefaults.
type PoolConfig struct {
	ConnString string

	MaxConns          int32 // 20
	MinConns          int32 // 5
	MaxConnLifetime   int32 // 3600
	MaxConnIdleTime   int32 // 1800
	HealthCheckPeriod int32 // 60
	ConnectTimeout    int32 // 10

	// AutoMigrate applies the embedded owners and employees schema after connecting.
	AutoMigrate bool
}

func (c *PoolConfig) applyDefaults() {
	c.MaxConns = orDefault(c.MaxConns, 20)
	c.MinConns = orDefault(c.MinConns, 5)
	c.MaxConnLifetime = orDefault(c.MaxConnLifetime, 3600)
	c.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, 1800)
	c.HealthCheckPeriod = orDefault(c.HealthCheckPeriod, 60)
	c.ConnectTimeout = orDefault(c.ConnectTimeout, 10)
}

func orDefault(v, def int32) int32 {
	if v == 0 {
		return def
	}
	return v
}

func seconds(v int32) time.Duration {
	return time.Duration(v) * time.Second
}

// NewPool connects to the payroll database and verifies the connection.
// The server retries it with backoff, so every failure closes what it opened.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil || cfg.ConnString == "" {
		return nil, errors.New("postgres connection string is required")
	}
	cfg.applyDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = seconds(cfg.MaxConnLifetime)
	poolConfig.MaxConnIdleTime = seconds(cfg.MaxConnIdleTime)
	poolConfig.HealthCheckPeriod = seconds(cfg.HealthCheckPeriod)
	poolConfig.ConnConfig.ConnectTimeout = seconds(cfg.ConnectTimeout)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("database", poolConfig.ConnConfig.Database).
		Str("host", poolConfig.ConnConfig.Host).
		Int32("max_conns", cfg.MaxConns).
		Bool("auto_migrate", cfg.AutoMigrate).
		Msg("Connected to payroll database")

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return pool, nil
}
