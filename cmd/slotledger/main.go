package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yordan-p/slotledger/internal/booking"
	"github.com/yordan-p/slotledger/internal/consumer"
	"github.com/yordan-p/slotledger/internal/directory"
	"github.com/yordan-p/slotledger/internal/handlers"
	"github.com/yordan-p/slotledger/internal/inbox"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/overlay"
	"github.com/yordan-p/slotledger/internal/schedule"
	"github.com/yordan-p/slotledger/internal/storage"
	"github.com/yordan-p/slotledger/libs/config"
	"github.com/yordan-p/slotledger/libs/db"
	"github.com/yordan-p/slotledger/libs/grpcx"
	"github.com/yordan-p/slotledger/libs/httpx"
	"github.com/yordan-p/slotledger/libs/kafkax"
	"github.com/yordan-p/slotledger/libs/otelx"
	"github.com/yordan-p/slotledger/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "slotledger")
	port, err := config.Port("PORT", "8084")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	scheduleRepo := storage.NewScheduleRepository(pool)
	ledgerRepo := storage.NewLedgerRepository(pool)
	reservationRepo := storage.NewReservationRepository(pool)
	sessionRepo := storage.NewSessionRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	directoryAddr := strings.TrimSpace(config.String("DIRECTORY_GRPC_ADDR", ""))
	resolver, err := directory.NewResolver(logger, catalogRepo, directoryAddr)
	if err != nil {
		logger.Error("directory resolver init failed", "err", err)
		panic(err)
	}

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
	}

	var overlayClient *overlay.Client
	if bridgeURL := strings.TrimSpace(config.String("CALENDAR_BRIDGE_URL", "")); bridgeURL != "" {
		overlayClient = overlay.NewClient(logger, rdb, overlay.Config{
			BaseURL:  bridgeURL,
			Timeout:  config.DurationSeconds("CALENDAR_BRIDGE_TIMEOUT_SECONDS", 3*time.Second),
			CacheTTL: config.DurationSeconds("CALENDAR_BRIDGE_CACHE_SECONDS", 30*time.Second),
		})
		logger.Info("external calendar overlay enabled", "bridge_url", bridgeURL)
	}

	deps := booking.Deps{
		Calendar:     schedule.NewCalendar(scheduleRepo),
		Reservations: reservationRepo,
		Ledger:       ledgerRepo,
		Sessions:     sessionRepo,
		Outbox:       outboxRepo,
		Resolver:     resolver,
	}
	if overlayClient != nil {
		deps.Overlay = overlayClient
	}
	svc := booking.NewService(logger, deps)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", "directory.service.upserted.v1")); topic != "" && strings.TrimSpace(brokers) != "" {
		catalogConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "slotledger"),
			Topic:   topic,
		}, catalogUpsertHandler(logger, catalogRepo))
		go catalogConsumer.Run(ctx)
	}

	availabilityHandler := handlers.NewAvailabilityHandler(svc, logger)
	reservationHandler := handlers.NewReservationHandler(svc, logger)
	sessionHandler := handlers.NewSessionHandler(svc, logger)
	scheduleAdminHandler := handlers.NewScheduleAdminHandler(scheduleRepo, svc, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}
	if directoryAddr != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "directory", Check: grpcx.ReadyCheck(directoryAddr)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	// Booking traffic from clients is rate limited; provider schedule
	// management is gateway-internal and is not.
	public := func(h http.HandlerFunc) http.Handler { return h }
	if rdb != nil {
		limit := 60
		if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "60")); err == nil && v > 0 {
			limit = v
		}
		rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		mw := rl.Middleware(logger, true)
		public = func(h http.HandlerFunc) http.Handler { return mw(h) }
		logger.Info("rate limiting enabled (redis)", "per_minute", limit)
	}

	mux.Handle("/api/v1/availability", public(availabilityHandler.Check))
	mux.Handle("/api/v1/schedule", public(availabilityHandler.Schedule))
	mux.Handle("/api/v1/reservations", public(reservationHandler.Handle))
	mux.Handle("/api/v1/reservations/reschedule", public(reservationHandler.Reschedule))
	mux.Handle("/api/v1/reservations/cancel", public(reservationHandler.Cancel))
	mux.HandleFunc("/api/v1/reservations/reject", reservationHandler.Reject)
	mux.HandleFunc("/api/v1/reservations/complete", reservationHandler.Complete)
	mux.HandleFunc("/api/v1/reservations/destroy", reservationHandler.Destroy)
	mux.Handle("/api/v1/sessions", public(sessionHandler.Handle))
	mux.Handle("/api/v1/sessions/reserve", public(sessionHandler.Reserve))
	mux.HandleFunc("/api/v1/sessions/cancel", sessionHandler.Cancel)
	mux.HandleFunc("/api/v1/sessions/complete", sessionHandler.Complete)
	mux.HandleFunc("/api/v1/schedule/weekly", scheduleAdminHandler.Weekly)
	mux.HandleFunc("/api/v1/schedule/days", scheduleAdminHandler.Days)
	mux.HandleFunc("/api/v1/schedule/blocks", scheduleAdminHandler.Blocks)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("MAX_BODY_BYTES", 1<<20))),
		httpx.WithTimeout(config.DurationSeconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// catalogUpsertHandler keeps the local service catalog in step with the
// directory's upsert events. Malformed payloads are logged and dropped, not
// retried.
func catalogUpsertHandler(logger *slog.Logger, repo *storage.CatalogRepository) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			Kind            string `json:"kind"`
			ID              string `json:"id"`
			ProviderKind    string `json:"provider_kind"`
			ProviderID      string `json:"provider_id"`
			ProviderOwnerID string `json:"provider_owner_id"`
			ServiceName     string `json:"service_name"`
			DurationMinutes int    `json:"duration_minutes"`
			Active          bool   `json:"active"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid directory event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		kind := model.ServiceKind(payload.Kind)
		providerKind := model.ProviderKind(payload.ProviderKind)
		if !kind.Valid() || !providerKind.Valid() || payload.ID == "" || payload.ProviderID == "" {
			logger.Error("missing required directory event fields", "topic", msg.Topic)
			return nil
		}
		return repo.Upsert(ctx, storage.CatalogEntry{
			Kind:            kind,
			ID:              payload.ID,
			Provider:        model.ProviderRef{Kind: providerKind, ID: payload.ProviderID},
			ProviderOwnerID: payload.ProviderOwnerID,
			ServiceName:     payload.ServiceName,
			DurationMinutes: payload.DurationMinutes,
			Active:          payload.Active,
		})
	}
}
