package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	rankingengine "calyx/contexts/market-core/ranking-engine"
	certificatesadapter "calyx/contexts/market-core/ranking-engine/adapters/certificates"
	rankingpostgres "calyx/contexts/market-core/ranking-engine/adapters/postgres"
	ratesadapter "calyx/contexts/market-core/ranking-engine/adapters/rates"
	rankingworkers "calyx/contexts/market-core/ranking-engine/application/workers"
	settlementservice "calyx/contexts/market-core/settlement-service"
	settlementpostgres "calyx/contexts/market-core/settlement-service/adapters/postgres"
	settlementworkers "calyx/contexts/market-core/settlement-service/application/workers"
	"calyx/internal/platform/config"
	"calyx/internal/platform/db"
	"calyx/internal/platform/httpserver"
	"calyx/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	rankingRelay    rankingworkers.OutboxRelay
	settlementRelay settlementworkers.OutboxRelay
	certificates    rankingworkers.CertificateConsumer
	pollInterval    time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	rankingRepo := rankingpostgres.NewRepository(pg.DB, logger)
	rankingModule := rankingengine.NewModule(rankingengine.Dependencies{
		Repository: rankingRepo,
		Outbox:     rankingRepo,
		Rates:      ratesadapter.NewFixedConverter(cfg.DefaultExchangeRate),
		Certificates: certificatesadapter.NewOutboxIssuer(
			rankingRepo,
			rankingpostgres.SystemClock{},
			rankingpostgres.UUIDGenerator{},
			logger,
		),
		Audit:       rankingpostgres.NewAuditLog(pg.DB, logger),
		Clock:       rankingpostgres.SystemClock{},
		IDGen:       rankingpostgres.UUIDGenerator{},
		DefaultRate: cfg.DefaultExchangeRate,
		MaxRetries:  cfg.RankingMaxRetries,
		Logger:      logger,
	})

	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	settlementModule := settlementservice.NewModule(settlementservice.Dependencies{
		Repository: settlementRepo,
		Outbox:     settlementRepo,
		Audit:      settlementpostgres.NewAuditLog(pg.DB, logger),
		Clock:      settlementpostgres.SystemClock{},
		IDGen:      settlementpostgres.UUIDGenerator{},
		Logger:     logger,
	})

	server := httpserver.New(rankingModule, settlementModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	rankingRepo := rankingpostgres.NewRepository(pg.DB, logger)
	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		rankingRelay: rankingworkers.OutboxRelay{
			Outbox:    rankingRepo,
			Publisher: kafka,
			Clock:     rankingpostgres.SystemClock{},
			Topic:     "market.reservations",
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		settlementRelay: settlementworkers.OutboxRelay{
			Outbox:    settlementRepo,
			Publisher: kafka,
			Clock:     settlementpostgres.SystemClock{},
			Topic:     "market.settlements",
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		certificates: rankingworkers.CertificateConsumer{
			Subscriber:    kafka,
			ConsumerGroup: "ranking-engine-certificates-cg",
			Logger:        logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.certificates.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.rankingRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.settlementRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
