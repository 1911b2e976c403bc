// Package container wires the application with samber/do. Each concern
// registers through its own Package function so the server and the
// headless consumer can assemble only what they need.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/clickstream-go/internal/analytics"
	"github.com/serroba/clickstream-go/internal/enrich"
	"github.com/serroba/clickstream-go/internal/eventstore"
	"github.com/serroba/clickstream-go/internal/handlers"
	"github.com/serroba/clickstream-go/internal/ingest"
	"github.com/serroba/clickstream-go/internal/messaging"
	"github.com/serroba/clickstream-go/internal/middleware"
	"github.com/serroba/clickstream-go/internal/realtime"
	"github.com/serroba/clickstream-go/internal/retention"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// Options configure the server and the consumer worker.
type Options struct {
	Port       int    `default:"8888"           help:"Port to listen on"               short:"p"`
	BaseURL    string `default:""               help:"Public base URL for short links; defaults to http://localhost:<port>"`
	CodeLength int    `default:"8"              help:"Length of generated short codes" short:"c"`
	RedisAddr  string `default:"localhost:6379" help:"Redis server address"            short:"r"`
	PostgresDSN string `default:""              help:"Postgres connection string; in-memory stores when empty"`
	LogFormat  string `default:"console"        help:"Log format: console or json"`

	GeoAPIURL    string `default:"https://ipwho.is" help:"Geolocation API base URL"`
	GeoCacheTTLm int    `default:"60"               help:"Geolocation cache TTL in minutes"`

	RetentionDays  int `default:"90"   help:"Event retention horizon in days"`
	RetentionBatch int `default:"1000" help:"Retention delete batch size"`
	SweepHours     int `default:"24"   help:"Hours between retention sweeps; 0 disables the sweeper"`

	SnapshotTTLs int `default:"300" help:"Realtime snapshot cache TTL in seconds"`
}

func (o *Options) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// LoggerPackage registers the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage registers the shared Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		return redis.NewClient(&redis.Options{Addr: options.RedisAddr}), nil
	})
}

// PostgresPackage registers the pgx pool. The provider is lazy, so it is
// safe to register even when no DSN is configured; it only runs when a
// store actually asks for the pool.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		options := do.MustInvoke[*Options](i)

		if options.PostgresDSN == "" {
			return nil, fmt.Errorf("no postgres DSN configured")
		}

		return pgxpool.New(context.Background(), options.PostgresDSN)
	})
}

// StorePackage registers the event store and the URL directory, backed
// by Postgres when a DSN is configured and in-memory otherwise.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (urldir.CodeGenerator, error) {
		options := do.MustInvoke[*Options](i)

		generate, err := nanoid.Standard(options.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("invalid code length %d: %w", options.CodeLength, err)
		}

		return urldir.CodeGenerator(generate), nil
	})

	do.Provide(injector, func(i *do.Injector) (eventstore.Store, error) {
		options := do.MustInvoke[*Options](i)

		if options.PostgresDSN == "" {
			return eventstore.NewMemoryStore(), nil
		}

		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}

		return eventstore.NewPostgresStore(pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (urldir.Directory, error) {
		options := do.MustInvoke[*Options](i)
		generate := do.MustInvoke[urldir.CodeGenerator](i)

		if options.PostgresDSN == "" {
			return urldir.NewMemoryDirectory(generate), nil
		}

		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}

		return urldir.NewPostgresDirectory(pool, generate), nil
	})
}

// EnrichPackage registers the geolocation resolver.
func EnrichPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (enrich.GeoResolver, error) {
		options := do.MustInvoke[*Options](i)

		ttl := time.Duration(options.GeoCacheTTLm) * time.Minute

		return enrich.NewHTTPGeoResolver(options.GeoAPIURL, ttl), nil
	})
}

// MessagingPackage registers the watermill redis stream transport and
// the typed click publisher.
func MessagingPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NopLogger{},
		)
		if err != nil {
			return nil, fmt.Errorf("creating redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (message.Subscriber, error) {
		client := do.MustInvoke[*redis.Client](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client,
				ConsumerGroup: "realtime",
			},
			watermill.NopLogger{},
		)
		if err != nil {
			return nil, fmt.Errorf("creating redis stream subscriber: %w", err)
		}

		return subscriber, nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[ingest.ClickRecorded], error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return messaging.NewPublishFunc[ingest.ClickRecorded](group.Publisher(), ingest.TopicClickRecorded), nil
	})
}

// IngestPackage registers the ingestion pipeline.
func IngestPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ingest.Pipeline, error) {
		return ingest.NewPipeline(
			do.MustInvoke[urldir.Directory](i),
			do.MustInvoke[eventstore.Store](i),
			do.MustInvoke[enrich.GeoResolver](i),
			nil,
			do.MustInvoke[messaging.Publish[ingest.ClickRecorded]](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// AnalyticsPackage registers the aggregation engine.
func AnalyticsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*analytics.Engine, error) {
		return analytics.NewEngine(
			do.MustInvoke[eventstore.Store](i),
			do.MustInvoke[urldir.Directory](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// RealtimePackage registers the broadcaster, the snapshot cache, the
// updater, and the click.recorded consumer group.
func RealtimePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*realtime.Broadcaster, error) {
		return realtime.NewBroadcaster(do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (realtime.SnapshotCache, error) {
		options := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)

		ttl := time.Duration(options.SnapshotTTLs) * time.Second

		return realtime.NewRedisSnapshotCache(client, ttl), nil
	})

	do.Provide(injector, func(i *do.Injector) (*realtime.Updater, error) {
		return realtime.NewUpdater(
			do.MustInvoke[*analytics.Engine](i),
			do.MustInvoke[urldir.Directory](i),
			do.MustInvoke[*realtime.Broadcaster](i),
			do.MustInvoke[realtime.SnapshotCache](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*realtime.WSHandler, error) {
		return realtime.NewWSHandler(
			do.MustInvoke[*realtime.Broadcaster](i),
			do.MustInvoke[*realtime.Updater](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		subscriber := do.MustInvoke[message.Subscriber](i)
		logger := do.MustInvoke[*zap.Logger](i)
		updater := do.MustInvoke[*realtime.Updater](i)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(
			subscriber,
			ingest.TopicClickRecorded,
			updater.HandleClickRecorded,
			logger,
		))

		return group, nil
	})
}

// RetentionPackage registers the retention manager.
func RetentionPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*retention.Manager, error) {
		options := do.MustInvoke[*Options](i)

		return retention.NewManager(
			do.MustInvoke[eventstore.Store](i),
			options.RetentionBatch,
			retention.DefaultBatchPause,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage registers the router, the huma API, and the handlers.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		options := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(router, huma.DefaultConfig("Clickstream", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))

		urls := do.MustInvoke[urldir.Directory](i)
		pipeline := do.MustInvoke[*ingest.Pipeline](i)
		engine := do.MustInvoke[*analytics.Engine](i)
		manager := do.MustInvoke[*retention.Manager](i)

		var redisCheck, postgresCheck handlers.HealthChecker

		redisCheck = handlers.NewRedisHealthChecker(do.MustInvoke[*redis.Client](i))

		if options.PostgresDSN != "" {
			pool, err := do.Invoke[*pgxpool.Pool](i)
			if err != nil {
				return nil, err
			}

			postgresCheck = handlers.NewPostgresHealthChecker(pool)
		}

		handlers.RegisterRoutes(
			api,
			handlers.NewClickHandler(urls, pipeline, logger),
			handlers.NewURLHandler(urls, options.baseURL(), logger),
			handlers.NewAnalyticsHandler(engine, urls, manager, logger),
			handlers.NewHealthHandler(redisCheck, postgresCheck),
		)

		handlers.RegisterWebSocket(router, do.MustInvoke[*realtime.WSHandler](i))

		return api, nil
	})
}
