package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/config"
	"github.com/nominahq/payslip-service/internal/database"
	"github.com/nominahq/payslip-service/internal/matcher"
	"github.com/nominahq/payslip-service/internal/notify"
	"github.com/nominahq/payslip-service/internal/queue"
	"github.com/nominahq/payslip-service/internal/queue/workers"
	"github.com/nominahq/payslip-service/internal/registry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	batchStore := batch.NewStore(db)
	reg := registry.NewStore(db)
	m := matcher.New(reg, cfg.Match)
	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, db)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypePayslipIngest, asynq.HandlerFunc(workers.NewIngestWorker(batchStore, m).ProcessTask))
	mux.Handle(queue.TypeNotifyDeliver, asynq.HandlerFunc(workers.NewNotifyWorker(notifier).ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
