package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/tripcart/internal/domain/checkout"
	"github.com/xenking/tripcart/internal/domain/order"
	"github.com/xenking/tripcart/internal/handler"
	"github.com/xenking/tripcart/internal/orderapi"
	"github.com/xenking/tripcart/internal/session"
	"github.com/xenking/tripcart/internal/storage/file"
	"github.com/xenking/tripcart/internal/storage/memory"
	"github.com/xenking/tripcart/internal/storage/postgres"
	"github.com/xenking/tripcart/pkg/health"
	"github.com/xenking/tripcart/pkg/httpmiddleware"
)

const janitorInterval = time.Hour

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Liveness, health.Check{
		Name:    "goroutines",
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})

	// Cart storage.
	var slots session.SlotOpener
	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.Add(health.Readiness, health.Check{
			Name:    "postgres",
			Timeout: 5 * time.Second,
			Func:    health.PingCheck(pool),
		})

		cartSlots := postgres.NewCartSlots(pool)
		if cfg.Storage.Retention > 0 {
			go runJanitor(ctx, lg.Named("janitor"), cartSlots, cfg.Storage.Retention)
		}
		slots = cartSlots
	case DriverFile:
		dir, err := file.NewDir(cfg.Storage.Dir)
		if err != nil {
			return errors.Wrap(err, "open storage dir")
		}
		healthSvc.Add(health.Readiness, health.Check{
			Name:    "storage",
			Timeout: time.Second,
			Func:    health.WritableCheck(dir),
		})
		slots = dir
	default:
		lg.Warn("Carts are kept in memory and lost on restart")
		slots = memory.New()
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	orders, err := orderapi.New(orderapi.Config{
		BaseURL:        cfg.OrderAPI.BaseURL,
		Timeout:        cfg.OrderAPI.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order api client")
	}

	api, err := newAPI(ctx, apiDeps{
		lg:             lg,
		cfg:            cfg,
		slots:          slots,
		orders:         orders,
		health:         healthSvc,
		tracerProvider: m.TracerProvider(),
		meterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.OrderAPI.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           api,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// runJanitor periodically drops carts nobody touched within retention.
func runJanitor(ctx context.Context, lg *zap.Logger, slots *postgres.CartSlots, retention time.Duration) {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := slots.DeleteStale(ctx, retention.Seconds())
			if err != nil {
				lg.Error("Delete stale carts", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("Deleted stale carts", zap.Int64("count", n))
			}
		}
	}
}

type apiDeps struct {
	lg             *zap.Logger
	cfg            *Config
	slots          session.SlotOpener
	orders         order.Creator
	health         *health.Health
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// newAPI builds the checkout pipeline and the instrumented HTTP handler
// serving the cart API and health probes.
func newAPI(ctx context.Context, d apiDeps) (http.Handler, error) {
	cfg := d.cfg
	orchestrator, err := checkout.New(d.orders,
		checkout.WithLogger(d.lg.Named("checkout")),
		checkout.WithTracerProvider(d.tracerProvider),
		checkout.WithMeterProvider(d.meterProvider),
		checkout.WithMaxParallel(cfg.OrderAPI.MaxParallel),
		checkout.WithResubmitCapacity(uint(cfg.OrderAPI.ResubmitCapacity)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	sessions := session.NewRegistry(d.slots, d.lg.Named("cart"),
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
	)
	go sessions.Run(ctx)
	h := handler.New(handler.Config{SecureCookie: cfg.SecureCookie}, sessions, orchestrator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", d.health.LiveEndpoint)
	mux.HandleFunc("GET /readyz", d.health.ReadyEndpoint)
	h.Register(mux)

	api := otelhttp.NewHandler(mux, "tripcart",
		otelhttp.WithTracerProvider(d.tracerProvider),
		otelhttp.WithMeterProvider(d.meterProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)

	return httpmiddleware.Wrap(api,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(d.lg),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.SessionHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
			MaxAge:           24 * time.Hour,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Only(
			httpmiddleware.Route(http.MethodPost, "/api/checkout"),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.CheckoutMax,
				Window:  cfg.RateLimit.CheckoutWindow,
				KeyFunc: handler.SessionID,
			}),
		),
	), nil
}
