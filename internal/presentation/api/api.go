package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/tenantwire/internal/infrastructure/configs"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ratelimiter"
	changesHandler "github.com/hilthontt/tenantwire/internal/presentation/handler/changes"
	healthHandler "github.com/hilthontt/tenantwire/internal/presentation/handler/health"
	membershipsHandler "github.com/hilthontt/tenantwire/internal/presentation/handler/memberships"
	partitionsHandler "github.com/hilthontt/tenantwire/internal/presentation/handler/partitions"
	realtimeHandler "github.com/hilthontt/tenantwire/internal/presentation/handler/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const requestTimeout = 60 * time.Second

// Handlers groups the route handlers. Memberships is optional and only
// mounted when a tenant directory is available.
type Handlers struct {
	Health      *healthHandler.Handler
	Changes     *changesHandler.Handler
	Partitions  *partitionsHandler.Handler
	Realtime    *realtimeHandler.Handler
	Memberships *membershipsHandler.Handler
}

type Application struct {
	config      configs.HTTPConfig
	handlers    Handlers
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
	gatherer    prometheus.Gatherer
	metrics     *httpMetrics
}

func NewApplication(
	config configs.HTTPConfig,
	handlers Handlers,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	registry *prometheus.Registry,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		logger:      logger,
		ratelimiter: ratelimiter,
		gatherer:    registry,
		metrics:     newHTTPMetrics(registry),
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)

	r.Handle("/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(app.rateLimiterMiddleware)
		r.Use(app.prometheusMiddleware)

		r.Get("/ws", app.handlers.Realtime.ServeWS)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/changes", app.handlers.Changes.CreateChangeHandler)

			r.Route("/partitions/{"+partitionsHandler.PartitionParam+"}", func(r chi.Router) {
				r.Use(app.handlers.Partitions.Authorize)
				r.Get("/audit", app.handlers.Partitions.ListAuditHandler)
				r.Get("/members", app.handlers.Partitions.ListMembersHandler)
			})

			if app.handlers.Memberships != nil {
				r.Put("/memberships/{"+membershipsHandler.ActorParam+"}", app.handlers.Memberships.AssignHandler)
			}

			r.Get("/health", app.handlers.Health.GetHealth)
			r.Get("/healthz", app.handlers.Health.GetHealth)
			r.Get("/live", app.handlers.Health.GetHealth)
			r.Get("/ready", app.handlers.Health.GetReady)
		})
	})

	return otelhttp.NewHandler(r, "tenantwire.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until ctx is cancelled, then shuts the server down within
// the configured timeout.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.Host, app.config.Port),
		Handler:      mux,
		WriteTimeout: app.config.WriteTimeout,
		ReadTimeout:  app.config.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		timeout := app.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "shutting down server", map[logging.ExtraKey]any{
			"addr": srv.Addr,
		})

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
