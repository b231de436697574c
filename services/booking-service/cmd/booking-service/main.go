package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ritebook/libs/auth"
	"github.com/md-rashed-zaman/ritebook/libs/config"
	"github.com/md-rashed-zaman/ritebook/libs/db"
	"github.com/md-rashed-zaman/ritebook/libs/grpcx"
	"github.com/md-rashed-zaman/ritebook/libs/httpx"
	"github.com/md-rashed-zaman/ritebook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/ritebook/libs/otel"
	"github.com/md-rashed-zaman/ritebook/libs/runtime"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/commitlock"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stores struct {
	assignments booking.Store
	providers   handlers.ProviderDirectory
	checks      []runtime.ReadyCheck
	close       func()
}

func openStores(ctx context.Context, logger *slog.Logger, driver string) (stores, error) {
	switch driver {
	case "memory":
		logger.Warn("using in-memory store; bookings are lost on restart")
		mem := memstore.New()
		return stores{assignments: mem, providers: mem, close: func() {}}, nil
	case "postgres":
	default:
		return stores{}, fmt.Errorf("STORE_DRIVER must be postgres or memory (got %q)", driver)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return stores{}, err
	}
	if config.Bool("MIGRATE_ON_START", true) {
		if err := db.Migrate(storage.Migrations, "migrations", dbURL); err != nil {
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return stores{}, fmt.Errorf("db connection failed: %w", err)
	}

	outboxRepo := outbox.NewRepository()
	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if strings.TrimSpace(brokers) != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	return stores{
		assignments: storage.NewAssignmentRepository(pool, outboxRepo),
		providers:   storage.NewProviderRepository(pool),
		checks:      checks,
		close:       pool.Close,
	}, nil
}

func main() {
	config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("TIMEZONE")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	st, err := openStores(ctx, logger, config.String("STORE_DRIVER", "postgres"))
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer st.close()

	engineOpts := []booking.Option{
		booking.WithLogger(logger),
		booking.WithDirectory(st.providers),
	}
	readyChecks := st.checks

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(64 << 10),
	}

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer rdb.Close()

		ttlMs, err := config.Int("COMMIT_LOCK_TTL_MS", 10000)
		if err != nil {
			panic(err)
		}
		engineOpts = append(engineOpts, booking.WithLocker(commitlock.NewRedisLocker(rdb, logger, commitlock.Config{
			TTL:    time.Duration(ttlMs) * time.Millisecond,
			Prefix: service,
		})))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: commitlock.ReadyCheck(rdb)})
		if rateLimit > 0 {
			limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service+":rl")
			middlewares = append(middlewares, limiter.Middleware(logger, true))
		}
	} else if rateLimit > 0 {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, time.Minute).Middleware())
	}
	middlewares = append(middlewares, httpx.WithTimeout(15*time.Second))

	engine := booking.New(st.assignments, engineOpts...)
	bookingHandler := handlers.NewBookingHandler(engine, st.providers, st.assignments, logger, loc)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	var providersRoute http.Handler = http.HandlerFunc(bookingHandler.Providers)
	verifier := auth.Verifier{Secret: config.String("JWT_SECRET", "")}
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		verifier.Keys = auth.NewKeySet(jwksURL, 5*time.Minute)
	}
	if verifier.Enabled() {
		providersRoute = auth.RequireRole(verifier, true, "scheduler", "admin")(providersRoute)
	} else {
		logger.Warn("provider writes are unauthenticated (JWT_SECRET and JWKS_URL unset)")
	}
	mux.Handle("/api/v1/providers", providersRoute)
	mux.HandleFunc("/api/v1/providers/availability", bookingHandler.Availability)
	mux.HandleFunc("/api/v1/providers/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Bookings)
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer()
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}
