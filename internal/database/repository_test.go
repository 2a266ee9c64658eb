package database

import (
	"context"
	"log"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"spreadmon/internal/model"
)

var (
	pool *pgxpool.Pool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	// Create and start the PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("could not stop postgres container: %s", err)
		}
	}()

	// Get the container's mapped port and host
	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	// Create the database connection string
	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	// Create a new connection pool
	pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	defer pool.Close()

	// Create the schema through the repository itself
	repo := NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate: %s", err)
	}

	// Run the tests
	code := m.Run()

	os.Exit(code)
}

func TestPostgresRepository_LogSample(t *testing.T) {
	ctx := context.Background()
	repo := &PostgresRepository{Pool: pool}

	sample := model.Sample{
		Timestamp:        time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		BinanceBid:       95000.10,
		BinanceAsk:       95000.20,
		BtcturkBid:       95012.00,
		BtcturkAsk:       95013.50,
		Spread:           11.80,
		SpreadPct:        0.012421,
		BinanceLatencyMS: 23.1,
		BtcturkLatencyMS: math.NaN(),
	}

	err := repo.LogSample(ctx, sample)
	assert.NoError(t, err)

	// Verify the sample was logged; an absent latency must come back NULL
	var (
		spread, spreadPct float64
		binanceLatency    *float64
		btcturkLatency    *float64
	)
	err = pool.QueryRow(ctx,
		"SELECT spread, spread_pct, binance_latency_ms, btcturk_latency_ms FROM spread_samples WHERE spread_pct = 0.012421",
	).Scan(&spread, &spreadPct, &binanceLatency, &btcturkLatency)
	assert.NoError(t, err)
	assert.Equal(t, sample.Spread, spread)
	assert.Equal(t, sample.SpreadPct, spreadPct)
	if assert.NotNil(t, binanceLatency) {
		assert.Equal(t, 23.1, *binanceLatency)
	}
	assert.Nil(t, btcturkLatency)
}
