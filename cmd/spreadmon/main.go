package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"spreadmon/internal/api"
	"spreadmon/internal/config"
	"spreadmon/internal/database"
	"spreadmon/internal/exchange"
	"spreadmon/internal/model"
	"spreadmon/internal/monitor"
	"spreadmon/internal/samplelog"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Collector.Enabled {
		startCollector(ctx, logger, cfg)
	}

	reader := samplelog.NewReader(cfg.SampleLog.Path, cfg.SampleLog.Layout)
	controller := api.NewController(reader, cfg.Server.DefaultWindow, logger)

	router := gin.Default()
	router.GET("/api/spread", controller.Spread)
	router.GET("/healthz", controller.Health)

	log.Fatalln(router.Run(cfg.Server.ListenAddr))
}

func startCollector(ctx context.Context, logger *slog.Logger, cfg config.Config) {
	var repo database.Repository
	if cfg.Database.Enabled {
		connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.Database.User, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			log.Fatalf("cannot connect to database: %v", err)
		}
		pgRepo := database.NewPostgresRepository(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Fatalf("cannot migrate database: %v", err)
		}
		repo = pgRepo
	}

	ticks := make(chan model.PriceTick, 64)
	for name, exCfg := range cfg.Exchanges {
		client, err := exchange.NewClient(name, logger, &exCfg)
		if err != nil {
			log.Fatalf("cannot create exchange client: %v", err)
		}
		pair := exCfg.PairSymbol
		go func() {
			if err := client.StartStream(ctx, ticks, pair); err != nil {
				logger.Error("exchange stream terminated", "exchange", client.GetName(), "error", err)
			}
		}()
	}

	writer := samplelog.NewWriter(cfg.SampleLog.Path)
	interval := time.Duration(cfg.Collector.IntervalMS) * time.Millisecond
	mon := monitor.New(logger, writer, repo, cfg.Collector.Pair, interval)
	go mon.Run(ctx, ticks)

	logger.Info("collector started",
		"pair", cfg.Collector.Pair,
		"interval", interval,
		"log", cfg.SampleLog.Path,
	)
}
