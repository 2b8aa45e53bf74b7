package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/config"
	"github.com/medilink/appointment-engine/internal/db"
	"github.com/medilink/appointment-engine/internal/logging"
	"github.com/medilink/appointment-engine/internal/notify"
	redisclient "github.com/medilink/appointment-engine/internal/redis"
)

// The worker scans for confirmed appointments starting inside the reminder
// window and emits one reminder each. A Redis SETNX key per appointment keeps
// reminders single-shot across worker restarts and replicas.
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

	logger.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.ReminderInterval),
		zap.Duration("window", cfg.ReminderWindow),
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

	rdb, err := redisclient.NewClient(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	var emitter notify.Emitter = notify.NewLogEmitter(logger)
	if cfg.AMQPURL != "" {
		amqpEmitter, err := notify.NewAMQPEmitter(cfg.AMQPURL, "appointments")
		if err != nil {
			logger.Fatal("amqp connection error", zap.Error(err))
		}
		defer func() { _ = amqpEmitter.Close() }()
		emitter = amqpEmitter
	}

	repo := appointment.NewPgRepository(pgPool)

	runOnce(rootCtx, repo, rdb, emitter, cfg, logger)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, rdb, emitter, cfg, logger)
		}
	}
}

func runOnce(ctx context.Context, repo appointment.Repository, rdb *redis.Client, emitter notify.Emitter, cfg config.Config, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	now := start.UTC()

	upcoming, err := repo.ListConfirmedStartingBetween(runCtx, now, now.Add(cfg.ReminderWindow))
	if err != nil {
		logger.Error("reminder scan failed", zap.Error(err))
		return
	}

	sent := 0
	for i := range upcoming {
		appt := &upcoming[i]

		key := "reminder:" + appt.ID.String()
		ok, err := rdb.SetNX(runCtx, key, "1", cfg.ReminderWindow).Result()
		if err != nil {
			logger.Warn("reminder dedupe check failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue // already reminded
		}

		if err := emitter.AppointmentReminder(runCtx, appt); err != nil {
			logger.Warn("reminder emit failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			// Let the next run retry.
			_ = rdb.Del(runCtx, key).Err()
			continue
		}
		sent++
	}

	logger.Info("reminder run complete",
		zap.Int("candidates", len(upcoming)),
		zap.Int("sent", sent),
		zap.Duration("took", time.Since(start)),
	)
}
