package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	paymentgroupservice "courtpay/contexts/settlement-core/payment-group-service"
	grouphttpclient "courtpay/contexts/settlement-core/payment-group-service/adapters/httpclient"
	grouppostgres "courtpay/contexts/settlement-core/payment-group-service/adapters/postgres"
	settlementservice "courtpay/contexts/settlement-core/settlement-service"
	settlementhttpclient "courtpay/contexts/settlement-core/settlement-service/adapters/httpclient"
	settlementpostgres "courtpay/contexts/settlement-core/settlement-service/adapters/postgres"
	"courtpay/contexts/settlement-core/settlement-service/application"
	"courtpay/contexts/settlement-core/settlement-service/application/workers"
	"courtpay/internal/platform/config"
	"courtpay/internal/platform/db"
	"courtpay/internal/platform/httpserver"
	"courtpay/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	callbackRelay workers.CallbackRelay
	relayEnabled  bool
	pollInterval  time.Duration
	logger        *slog.Logger
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

	groupRepo := grouppostgres.NewRepository(pg.DB, logger)
	groupModule := paymentgroupservice.NewModule(paymentgroupservice.Dependencies{
		Repository:  groupRepo,
		OrgLookup:   grouphttpclient.NewOrgLookupClient(cfg.OrgLookupURL),
		Clock:       grouppostgres.SystemClock{},
		IDGenerator: grouppostgres.UUIDGenerator{},
		Logger:      logger,
	})

	settlementRepo := settlementpostgres.NewRepository(pg.DB)
	settlementModule := settlementservice.NewModule(settlementservice.Dependencies{
		Ledger:      settlementRepo,
		Idempotency: settlementRepo,
		Gateway:     settlementhttpclient.NewGatewayClient(cfg.GatewayBaseURL),
		Accounts:    settlementhttpclient.NewAccountClient(cfg.AccountsBaseURL),
		Outbox:      settlementRepo,
		Clock:       settlementpostgres.SystemClock{},
		IDGen:       settlementpostgres.UUIDGenerator{},
		Features: application.Features{
			ApportionEnabled: cfg.ApportionEnabled,
			CancelEnabled:    cfg.CancelEnabled,
		},
		RelayTopic: cfg.CallbackRelayTopic,
		Logger:     logger,
	})

	server := httpserver.New(groupModule, settlementModule, logger, normalizeAddr(cfg.HTTPPort))
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

	kafka, err := messaging.NewKafka(nil, logger)
	if err != nil {
		return nil, err
	}

	repo := settlementpostgres.NewRepository(pg.DB)
	return &WorkerApp{
		postgres: pg,
		callbackRelay: workers.CallbackRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     settlementpostgres.SystemClock{},
			Topic:     cfg.CallbackRelayTopic,
			BatchSize: 100,
			Logger:    logger,
		},
		relayEnabled: cfg.CallbackRelayEnabled,
		pollInterval: resolveInterval(cfg.CallbackRelayInterval),
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
	if !w.relayEnabled {
		w.logger.Info("callback relay disabled, worker idle",
			"event", "bootstrap_worker_idle",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		<-ctx.Done()
		return nil
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
		if err := w.callbackRelay.RunOnce(ctx); err != nil {
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

func resolveInterval(raw string) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || parsed <= 0 {
		return 2 * time.Second
	}
	return parsed
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
