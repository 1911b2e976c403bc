package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/clickstream-go/internal/container"
	"github.com/serroba/clickstream-go/internal/messaging"
	"github.com/serroba/clickstream-go/internal/realtime"
	"github.com/serroba/clickstream-go/internal/retention"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
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
	container.HTTPPackage(injector)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			ctx := context.Background()

			group := do.MustInvoke[*messaging.ConsumerGroup](injector)
			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			if options.SweepHours > 0 {
				manager := do.MustInvoke[*retention.Manager](injector)
				manager.Start(
					ctx,
					time.Duration(options.SweepHours)*time.Hour,
					time.Duration(options.RetentionDays)*24*time.Hour,
				)
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting", zap.Int("port", options.Port))

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if group, err := do.Invoke[*messaging.ConsumerGroup](injector); err == nil {
				if err = group.Shutdown(); err != nil {
					logger.Error("consumer group shutdown error", zap.Error(err))
				}
			}

			if manager, err := do.Invoke[*retention.Manager](injector); err == nil {
				if err = manager.Shutdown(); err != nil {
					logger.Error("retention shutdown error", zap.Error(err))
				}
			}

			if broadcaster, err := do.Invoke[*realtime.Broadcaster](injector); err == nil {
				_ = broadcaster.Shutdown()
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
