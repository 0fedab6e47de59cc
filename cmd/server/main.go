package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/bookwell/insights/internal/anonymize"
	"github.com/bookwell/insights/internal/api"
	"github.com/bookwell/insights/internal/benchmark"
	"github.com/bookwell/insights/internal/config"
	"github.com/bookwell/insights/internal/consent"
	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/forecast"
	"github.com/bookwell/insights/internal/metricsource"
	"github.com/bookwell/insights/internal/pkg/logger"
	"github.com/bookwell/insights/internal/privacy"
	"github.com/bookwell/insights/internal/repository/postgres"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		logger.Error("load config", "err", err.Error())
		os.Exit(1)
	}

	db, err := metricsource.OpenPostgres(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Error("open postgres", "err", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// The raw source is Postgres by default; the warehouse takes over batch
	// cohort extraction when configured.
	var source metricsource.RawSource = metricsource.NewPostgresSource(db)
	if cfg.Warehouse.Enabled {
		wh, err := metricsource.NewWarehouseSource(cfg.Warehouse)
		if err != nil {
			logger.Error("open warehouse", "err", err.Error())
			os.Exit(1)
		}
		source = wh
		logger.Info("warehouse source enabled", "account", cfg.Warehouse.Account)
	}

	extractor := metricsource.NewExtractor(source,
		time.Duration(cfg.Extract.TimeoutSeconds)*time.Second, cfg.Extract.CohortWorkers)

	aggregator, err := anonymize.NewAggregator(cfg.Privacy.MinimumGroupSize)
	if err != nil {
		logger.Error("aggregator", "err", err.Error())
		os.Exit(1)
	}

	// Redis ledger so budget state survives restarts and is shared across
	// nodes; the Postgres ledger is the fallback when Redis is not set.
	var ledger privacy.Ledger
	if cfg.Redis.Addr != "" {
		ledger = privacy.NewRedisLedger(redisClient, cfg.Privacy.EpsilonCap)
	} else {
		ledger = postgres.NewLedgerRepo(db, cfg.Privacy.EpsilonCap)
	}
	injector, err := privacy.NewInjector(ledger, cfg.Privacy.EpsilonPerQuery)
	if err != nil {
		logger.Error("injector", "err", err.Error())
		os.Exit(1)
	}

	consentSvc := consent.NewService(postgres.NewConsentRepo(db), postgres.NewAuditRepo(db))

	cache := benchmark.NewCache(redisClient, time.Duration(cfg.Benchmark.CacheTTLSeconds)*time.Second)
	consentSvc.RegisterInvalidator(cache)
	// Withdrawal also drops the injector's per-session release cache.
	consentSvc.RegisterInvalidator(consent.InvalidatorFunc(func(_ context.Context, tenantID string, category domain.ConsentCategory) error {
		injector.InvalidateSession(tenantID, category)
		return nil
	}))

	benchmarkSvc := benchmark.NewService(consentSvc, extractor, aggregator, injector, cache,
		nil, cfg.Privacy.Sensitivity)

	forecastSvc := forecast.NewService(consentSvc, extractor, source, aggregator, injector,
		nil, cfg.Privacy.Sensitivity, cfg.Forecast.MinHistoryPeriods, cfg.Forecast.BaseInterval,
		forecast.Weights{
			Recency:   cfg.Churn.RecencyWeight,
			Frequency: cfg.Churn.FrequencyWeight,
			Monetary:  cfg.Churn.MonetaryWeight,
		}, cfg.Churn.RiskThreshold)

	handlers := api.NewHandlers(consentSvc, benchmarkSvc, forecastSvc, injector, db, redisClient)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("insights server listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil {
			logger.Error("server stopped", "err", err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err.Error())
	}
}
