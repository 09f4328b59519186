package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicslots/libs/config"
	"github.com/md-rashed-zaman/clinicslots/libs/db"
	"github.com/md-rashed-zaman/clinicslots/libs/grpcx"
	"github.com/md-rashed-zaman/clinicslots/libs/httpx"
	"github.com/md-rashed-zaman/clinicslots/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicslots/libs/otel"
	"github.com/md-rashed-zaman/clinicslots/libs/runtime"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/clinicslots/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// backend bundles what the storage driver provides to the rest of serve.
type backend struct {
	source  scheduling.Source
	ledger  booking.Ledger
	inbox   inbox.Recorder
	pool    *db.Pool
	cleanup func()
}

func runServe() error {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		return err
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

	be, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer be.cleanup()

	checks := []runtime.ReadyCheck{}
	if be.pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(be.pool)})
	}

	bookGuard, rdb, err := bookingRateLimit(logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: true})
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if strings.TrimSpace(brokers) != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	}

	resolver := scheduling.NewResolver(be.source, logger)
	booker := booking.NewBooker(be.source, be.ledger, logger)

	if be.pool != nil {
		publisher := outbox.NewPublisher(be.pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
	}
	if topic := config.String("KAFKA_STATUS_TOPIC", "clinic.appointment.status_changed.v1"); brokers != "" && topic != "" {
		statusConsumer := consumer.New(logger, be.inbox, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		}, consumer.StatusChangeHandler(booker, logger))
		go statusConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewBookingHandler(resolver, booker, logger).Register(mux, bookGuard)

	bodyLimit, err := config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return err
	}
	timeout, err := config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)
	if err != nil {
		return err
	}
	httpHandler := newHTTPHandler(mux, logger, httpOptions{
		CORSOrigins: config.List("CORS_ORIGINS"),
		BodyLimit:   int64(bodyLimit),
		Timeout:     timeout,
	})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	health := grpcx.NewHealthServer(logger, service)
	health.SetServing("", true)
	health.SetServing(service, true)
	go health.Serve(ctx, lis)

	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
	return nil
}

func openBackend(ctx context.Context, logger *slog.Logger) (backend, error) {
	driver := strings.ToLower(config.String("STORAGE_DRIVER", "postgres"))
	switch driver {
	case "memory":
		store := storage.NewMemoryStore()
		if path := config.String("SEED_FILE", ""); path != "" {
			if err := storage.LoadSeedFile(store, path); err != nil {
				return backend{}, fmt.Errorf("load seed %s: %w", path, err)
			}
			logger.Info("seed loaded", "path", path)
		}
		logger.Warn("using in-memory storage; data is lost on restart")
		return backend{source: store, ledger: store, inbox: inbox.NewMemory(), cleanup: func() {}}, nil

	case "postgres":
		pool, err := openPool(ctx)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			return backend{}, err
		}
		return backend{
			source:  storage.NewScheduleRepository(pool),
			ledger:  storage.NewBookingRepository(pool, outbox.NewRepository()),
			inbox:   inbox.NewRepository(pool),
			pool:    pool,
			cleanup: pool.Close,
		}, nil
	}
	return backend{}, fmt.Errorf("unknown STORAGE_DRIVER %q (want postgres or memory)", driver)
}

func openPool(ctx context.Context) (*db.Pool, error) {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	return db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
}

// bookingRateLimit guards the booking route, preferring a shared Redis
// window and falling back to a per-process one.
func bookingRateLimit(logger *slog.Logger) (httpx.Middleware, *redis.Client, error) {
	limit, err := config.Int("BOOKING_RATE_LIMIT", 30)
	if err != nil {
		return nil, nil, err
	}
	window, err := config.Duration("BOOKING_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		return nil, nil, nil
	}

	if raw := config.String("REDIS_URL", ""); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		limiter := httpx.NewRedisRateLimiter(rdb, limit, window, "booking:book")
		return httpx.RateLimit(limiter, logger, true), rdb, nil
	}
	return httpx.RateLimit(httpx.NewMemoryRateLimiter(limit, window), logger, true), nil, nil
}

type httpOptions struct {
	CORSOrigins []string
	BodyLimit   int64
	Timeout     time.Duration
}

// newHTTPHandler wraps the API mux. The request id is assigned before recovery
// so panic logs carry it. Booking writes are exempt from the handler timeout;
// the ledger transaction always runs to commit or rollback.
func newHTTPHandler(mux http.Handler, logger *slog.Logger, opts httpOptions) http.Handler {
	h := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(opts.CORSOrigins),
		httpx.WithBodyLimit(opts.BodyLimit),
		httpx.WithTimeoutExcept(opts.Timeout, isBookingWrite),
	)
	return otelhttp.NewHandler(h, "booking")
}

func isBookingWrite(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/api/v1/appointments"
}
