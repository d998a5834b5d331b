package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hilthontt/tenantwire/internal/application/changefeed"
	"github.com/hilthontt/tenantwire/internal/infrastructure/configs"
	"github.com/hilthontt/tenantwire/internal/infrastructure/events"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/messaging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tenantwire/internal/infrastructure/tracing"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ws"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
	"github.com/hilthontt/tenantwire/internal/persistence/repository"
	"github.com/hilthontt/tenantwire/internal/presentation/api"
	"github.com/hilthontt/tenantwire/internal/presentation/handler/changes"
	"github.com/hilthontt/tenantwire/internal/presentation/handler/health"
	"github.com/hilthontt/tenantwire/internal/presentation/handler/memberships"
	"github.com/hilthontt/tenantwire/internal/presentation/handler/partitions"
	"github.com/hilthontt/tenantwire/internal/presentation/handler/realtime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal(logging.General, logging.Startup, "tenantwire stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func run(ctx context.Context, cfg *configs.Config, logger logging.Logger) error {
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	healthHandler := health.NewHandler(logger)

	// exec stays an untyped nil without postgres so stores see "no executor".
	var (
		exec db.QueryExecutor
		pool *pgxpool.Pool
	)
	if cfg.Postgres.DSN != "" {
		pool, err = db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		exec = pool
		healthHandler.AddCheck("postgres", pool.Ping)

		if cfg.Postgres.Migrate {
			applied, err := db.RunMigrations(ctx, pool)
			if err != nil {
				return err
			}
			logger.Info(logging.Postgres, logging.Migration, "migrations applied", map[logging.ExtraKey]any{
				"versions": applied,
			})
		}
	}

	var backendOpts []repository.BackendOption

	switch cfg.Audit.Sink {
	case repository.SinkMongo:
		client, err := db.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() { _ = db.DisconnectMongo(context.Background(), client) }()

		mongoAudit := repository.NewMongoAuditRepository(client.Database(cfg.Mongo.Database))
		if err := mongoAudit.EnsureIndexes(ctx, cfg.Mongo.Retention); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "could not ensure audit indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		backendOpts = append(backendOpts, repository.WithMongoAudit(mongoAudit))
		healthHandler.AddCheck("mongo", func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		})
	case repository.SinkMemory:
		backendOpts = append(backendOpts, repository.WithMemoryAudit(repository.NewMemoryAuditRepository(cfg.Audit.MemoryCapacity)))
	}

	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		backendOpts = append(backendOpts, repository.WithTenantCache(repository.NewRedisTenantCache(redisClient, cfg.TenantCache.TTL)))
		healthHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		backendOpts = append(backendOpts, repository.WithTenantCache(repository.NewMemoryTenantCache(cfg.TenantCache.TTL, cfg.TenantCache.Capacity)))
	}

	if len(cfg.Audit.StaticTenants) > 0 {
		backendOpts = append(backendOpts, repository.WithStaticTenants(cfg.Audit.StaticTenants))
	}

	backend := repository.NewBackend(cfg.Audit.Sink, backendOpts...)

	registry := ws.NewRegistry(logger,
		ws.WithConnectionGauge(ws.NewConnectionGauge(reg)),
		ws.WithCheckOrigin(func(r *http.Request) bool {
			return api.OriginAllowed(cfg.HTTP.AllowedOrigins, r.Header.Get("Origin"))
		}),
	)

	var conn changefeed.ConnectionLayer = ws.NewChangeEmitter(registry)
	if cfg.RabbitMQ.URI != "" {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer rabbitmq.Close()

		// Every instance consumes the feed into its own registry; notifiers
		// publish to the feed instead of emitting locally.
		if err := events.NewChangeConsumer(rabbitmq, conn, logger).Listen(ctx); err != nil {
			return err
		}
		conn = events.NewChangePublisher(rabbitmq)
	}

	metrics := changefeed.NewMetrics(reg)
	notifier := changefeed.NewNotifier(backend, logger,
		changefeed.WithAnonymousActor(cfg.Audit.AnonymousActor),
		changefeed.WithMetrics(metrics),
	)
	dispatcher := changefeed.NewDispatcher(notifier, exec, conn,
		changefeed.WithQueueSize(cfg.Audit.QueueSize),
		changefeed.WithWorkers(cfg.Audit.Workers),
		changefeed.WithBaseContext(ctx),
	)

	// Request limits are shared between instances when redis is available.
	var requestLimiter ratelimiter.Limiter
	if redisClient != nil {
		limiter := ratelimiter.NewRedisWindowRateLimiter(redisClient, cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
		defer limiter.Close()
		requestLimiter = limiter
	} else {
		limiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
		defer limiter.Close()
		requestLimiter = limiter
	}

	handlers := api.Handlers{
		Health:  healthHandler,
		Changes: changes.NewHandler(dispatcher),
		Partitions: partitions.NewHandler(notifier, backend, registry, exec, partitions.Config{
			DefaultPageSize: cfg.Audit.DefaultPageSize,
			MaxPageSize:     cfg.Audit.MaxPageSize,
		}, logger),
		Realtime: realtime.NewHandler(registry, ws.ClientConfig{
			SendBuffer:     cfg.WS.SendBuffer,
			PingPeriod:     cfg.WS.PingPeriod,
			PongWait:       cfg.WS.PongWait,
			WriteWait:      cfg.WS.WriteWait,
			MaxMessageSize: cfg.WS.MaxMessageSize,

			CommandsPerWindow: cfg.WS.CommandsPerTime,
			CommandWindow:     cfg.WS.CommandWindow,
		}, logger),
	}
	if pool != nil {
		handlers.Memberships = memberships.NewHandler(repository.NewTenantDirectory(pool), backend, logger)
	}

	app := api.NewApplication(cfg.HTTP, handlers, logger, requestLimiter, reg)
	runErr := app.Run(ctx, app.Mount())

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn(logging.Audit, logging.Dispatch, "dispatcher did not drain before shutdown", map[logging.ExtraKey]any{
			"pending":            dispatcher.Len(),
			logging.ErrorMessage: err.Error(),
		})
	}

	return runErr
}
