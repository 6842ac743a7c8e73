// worker deletes expired one-time codes (and Postgres-backed sessions) on SWEEP_INTERVAL.
// Redis sessions expire on their own TTL and are not swept.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tm65023/Story/internal/config"
	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/logging"
	otprepo "github.com/tm65023/Story/internal/otp/repository"
	sessionrepo "github.com/tm65023/Story/internal/session/repository"
	"github.com/tm65023/Story/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("worker: database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	targets := []sweeper.Target{{Name: "one_time_codes", Deleter: otprepo.NewPostgresRepository(sqlDB)}}
	if cfg.SessionBackend == config.SessionBackendPostgres {
		targets = append(targets, sweeper.Target{Name: "sessions", Deleter: sessionrepo.NewPostgresRepository(sqlDB)})
	}
	s, err := sweeper.New(cfg.SweepInterval(), logger, targets...)
	if err != nil {
		logger.Error("worker: sweeper", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker: shutting down...")
		cancel()
	}()

	logger.Info("worker: sweeping expired rows", "interval", cfg.SweepInterval(), "targets", len(targets))
	s.Run(ctx)
	logger.Info("worker: stopped")
}
