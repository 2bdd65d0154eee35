package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signup_funnel_backend/internal/adapters"
	"signup_funnel_backend/internal/email"
	leadrepo "signup_funnel_backend/internal/leads/repository"
	"signup_funnel_backend/internal/scheduler"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/db"
	"signup_funnel_backend/platform/logger"
	"signup_funnel_backend/platform/startup"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := startup.Retry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	leads := adapters.NewFunnelLeadStore(leadrepo.New(pool))

	worker, err := scheduler.NewWorker(cfg, cfg, sender, leads, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	if err := worker.Run(ctx); err != nil {
		log.Error("scheduler worker failed", "error", err)
		panic("scheduler worker failed: " + err.Error())
	}
	log.Info("scheduler stopped")
}
