package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"trade-signal-bot/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Signals: one row per tracked trade signal. Collection fields are
		// JSONB documents and the row is replaced wholesale on update, so a
		// patch is applied atomically per signal.
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			asset VARCHAR(20) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			entry DOUBLE PRECISION,
			stop_loss DOUBLE PRECISION,
			stop_loss_original DOUBLE PRECISION,
			take_profits JSONB NOT NULL DEFAULT '{}',
			plan JSONB NOT NULL DEFAULT '{}',
			tp_hits JSONB NOT NULL DEFAULT '{}',
			fills JSONB NOT NULL DEFAULT '[]',
			latest_tp_hit TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'RUNNING',
			valid_for_summary BOOLEAN NOT NULL DEFAULT TRUE,
			reason TEXT NOT NULL DEFAULT '',
			extra_mentions TEXT NOT NULL DEFAULT '',
			final_r DOUBLE PRECISION,
			author_id TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			message_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at)`,

		// Small key-value table for bot bookkeeping (summary message ID).
		`CREATE TABLE IF NOT EXISTS bot_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
