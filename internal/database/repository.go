package database

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"

	"spreadmon/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LogSample(ctx context.Context, sample model.Sample) error
	Migrate(ctx context.Context) error
}

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

// Migrate creates the spread_samples table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS spread_samples (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		binance_bid DOUBLE PRECISION,
		binance_ask DOUBLE PRECISION,
		btcturk_bid DOUBLE PRECISION,
		btcturk_ask DOUBLE PRECISION,
		spread DOUBLE PRECISION NOT NULL,
		spread_pct DOUBLE PRECISION NOT NULL,
		binance_latency_ms DOUBLE PRECISION,
		btcturk_latency_ms DOUBLE PRECISION
	);`
	if _, err := r.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate spread_samples: %w", err)
	}
	return nil
}

// LogSample inserts one spread sample. Absent (non-finite) measurements
// are stored as NULL.
func (r *PostgresRepository) LogSample(ctx context.Context, sample model.Sample) error {
	const query = `
	INSERT INTO spread_samples (
		ts, binance_bid, binance_ask, btcturk_bid, btcturk_ask,
		spread, spread_pct, binance_latency_ms, btcturk_latency_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.Pool.Exec(ctx, query,
		sample.Timestamp,
		nullable(sample.BinanceBid),
		nullable(sample.BinanceAsk),
		nullable(sample.BtcturkBid),
		nullable(sample.BtcturkAsk),
		sample.Spread,
		sample.SpreadPct,
		nullable(sample.BinanceLatencyMS),
		nullable(sample.BtcturkLatencyMS),
	)
	if err != nil {
		return fmt.Errorf("insert spread sample: %w", err)
	}
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
