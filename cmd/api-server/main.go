package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/api"
	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/availability"
	"github.com/medilink/appointment-engine/internal/config"
	"github.com/medilink/appointment-engine/internal/db"
	"github.com/medilink/appointment-engine/internal/logging"
	"github.com/medilink/appointment-engine/internal/metrics"
	"github.com/medilink/appointment-engine/internal/notify"
	redisclient "github.com/medilink/appointment-engine/internal/redis"
	"github.com/medilink/appointment-engine/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewClient(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	var emitter notify.Emitter = notify.NewLogEmitter(logger)
	if cfg.AMQPURL != "" {
		amqpEmitter, err := notify.NewAMQPEmitter(cfg.AMQPURL, "appointments")
		if err != nil {
			logger.Fatal("amqp connection error", zap.Error(err))
		}
		defer func() { _ = amqpEmitter.Close() }()
		emitter = amqpEmitter
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	appointments := appointment.NewService(repo, locker, logger, bookingMetrics).WithNotifier(emitter)

	source := schedule.NewPgSource(pgPool)
	resolver := schedule.NewResolver(source, cfg.CutoffHour, logger)
	gridCache := availability.NewGridCache(rdb, cfg.GridCacheTTL)
	availabilitySvc := availability.NewService(resolver, repo, gridCache, cfg.SlotDuration, logger, bookingMetrics)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Availability: availabilitySvc,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
		HorizonDays:  cfg.HorizonDays,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
