package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tareq-mahmood/schedulr/internal/attendance"
	"github.com/tareq-mahmood/schedulr/internal/availability"
	"github.com/tareq-mahmood/schedulr/internal/booking"
	"github.com/tareq-mahmood/schedulr/internal/edits"
	"github.com/tareq-mahmood/schedulr/internal/handlers"
	"github.com/tareq-mahmood/schedulr/internal/notify"
	"github.com/tareq-mahmood/schedulr/internal/outbox"
	"github.com/tareq-mahmood/schedulr/internal/scheduler"
	"github.com/tareq-mahmood/schedulr/internal/storage"
	"github.com/tareq-mahmood/schedulr/libs/config"
	"github.com/tareq-mahmood/schedulr/libs/db"
	"github.com/tareq-mahmood/schedulr/libs/httpx"
	"github.com/tareq-mahmood/schedulr/libs/kafkax"
	otelx "github.com/tareq-mahmood/schedulr/libs/otel"
	"github.com/tareq-mahmood/schedulr/libs/runtime"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "schedulr")
	port, err := config.Port("PORT", "8080")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()
	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	sender := notify.NewOutboxSender(pool, outboxRepo, logger)
	linkBase := config.String("PUBLIC_LINK_BASE_URL", "http://localhost:"+port+"/api/v1/public")

	calc := availability.NewCalculator(repo, repo)
	bookingSvc := booking.NewService(repo, sender, logger)
	editFlow := edits.NewWorkflow(repo, sender, logger, linkBase)
	attendanceFlow := attendance.NewWorkflow(repo, sender, logger, linkBase)
	sweeper := scheduler.NewSweeper(repo, sender, attendanceFlow, logger)

	if config.Bool("SCHEDULER_TICKER_ENABLED", true) {
		go sweeper.Run(ctx, config.Duration("SCHEDULER_INTERVAL_MINUTES", 15*time.Minute))
	}

	availabilityHandler := handlers.NewAvailabilityHandler(calc, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	editHandler := handlers.NewEditHandler(editFlow, logger)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceFlow, logger)
	adminHandler := handlers.NewAdminHandler(repo, logger)
	schedulerHandler := handlers.NewSchedulerHandler(sweeper, config.String("SCHEDULER_SHARED_SECRET", ""), logger)

	// public endpoints sit behind a per-client rate limit; redis makes the
	// window shared across replicas, memory covers single-node deployments
	var limit httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limit = httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT", 60), time.Minute, service).
			Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(config.Int("RATE_LIMIT", 60), time.Minute).Middleware()
	}
	public := func(h http.HandlerFunc) http.Handler { return limit(h) }

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/api/v1/public/slots", public(availabilityHandler.Slots))
	mux.Handle("/api/v1/public/book", public(bookingHandler.Book))
	mux.Handle("/api/v1/public/edit-requests/confirm", public(editHandler.Confirm))
	mux.Handle("/api/v1/public/edit-requests/reject", public(editHandler.Reject))
	mux.Handle("/api/v1/public/confirmations/confirm", public(attendanceHandler.Confirm))
	mux.Handle("/api/v1/public/confirmations/cancel", public(attendanceHandler.Cancel))
	mux.HandleFunc("/api/v1/edit-requests", editHandler.Propose)
	mux.HandleFunc("/api/v1/hours", adminHandler.UpsertHours)
	mux.HandleFunc("/api/v1/slot-policy", adminHandler.UpsertSlotPolicy)
	mux.HandleFunc("/api/v1/time-off", adminHandler.TimeOff)
	mux.HandleFunc("/api/v1/notification-settings", adminHandler.Settings)
	mux.HandleFunc("/api/v1/notifications", adminHandler.Notifications)
	mux.HandleFunc("/internal/scheduler/run", schedulerHandler.Run)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithBodyLimit(1<<20),
		httpx.WithAccessLog(logger),
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
