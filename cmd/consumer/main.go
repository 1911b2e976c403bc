// The consumer worker runs the realtime updater headless: it consumes
// click.recorded events and keeps the broadcast snapshots current for
// every server process sharing the redis snapshot cache.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/samber/do"
	"github.com/serroba/clickstream-go/internal/container"
	"github.com/serroba/clickstream-go/internal/messaging"
	"go.uber.org/zap"
)

type config struct {
	RedisAddr     string `env:"REDIS_ADDR"      envDefault:"localhost:6379"`
	PostgresDSN   string `env:"POSTGRES_DSN"    envDefault:""`
	LogFormat     string `env:"LOG_FORMAT"      envDefault:"console"`
	GeoAPIURL     string `env:"GEO_API_URL"     envDefault:"https://ipwho.is"`
	GeoCacheTTLm  int    `env:"GEO_CACHE_TTL_M" envDefault:"60"`
	SnapshotTTLs  int    `env:"SNAPSHOT_TTL_S"  envDefault:"300"`
	CodeLength    int    `env:"CODE_LENGTH"     envDefault:"8"`
	RetentionDays int    `env:"RETENTION_DAYS"  envDefault:"90"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	opts := &container.Options{
		RedisAddr:     cfg.RedisAddr,
		PostgresDSN:   cfg.PostgresDSN,
		LogFormat:     cfg.LogFormat,
		GeoAPIURL:     cfg.GeoAPIURL,
		GeoCacheTTLm:  cfg.GeoCacheTTLm,
		SnapshotTTLs:  cfg.SnapshotTTLs,
		CodeLength:    cfg.CodeLength,
		RetentionDays: cfg.RetentionDays,
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.StorePackage(injector)
	container.EnrichPackage(injector)
	container.MessagingPackage(injector)
	container.IngestPackage(injector)
	container.AnalyticsPackage(injector)
	container.RealtimePackage(injector)
	container.RetentionPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, cancel := context.WithCancel(context.Background())

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	if err := group.Shutdown(); err != nil {
		logger.Error("consumer group shutdown error", zap.Error(err))
	}

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
