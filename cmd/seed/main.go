// seed inserts a verified development user (dev@example.com) so the sign-in flow can be tried
// without completing enrollment first. Idempotent; refuses to run with APP_ENV=production.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tm65023/Story/internal/config"
	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/logging"
	userdomain "github.com/tm65023/Story/internal/user/domain"
	userrepo "github.com/tm65023/Story/internal/user/repository"
)

const devUserEmail = "dev@example.com"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	if cfg.IsProduction() {
		logger.Error("seed: refusing to seed a production database")
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("seed: database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(conn)
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     devUserEmail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := users.CreateIfAbsent(ctx, u)
	if err != nil {
		logger.Error("seed: create dev user", "error", err)
		os.Exit(1)
	}
	if !inserted {
		existing, err := users.GetByEmail(ctx, devUserEmail)
		if err != nil || existing == nil {
			logger.Error("seed: load dev user", "error", err)
			os.Exit(1)
		}
		u = existing
	}
	if err := users.MarkVerified(ctx, u.ID, now); err != nil {
		logger.Error("seed: verify dev user", "error", err)
		os.Exit(1)
	}
	logger.Info("seed: dev user ready", "email", devUserEmail, "user_id", u.ID, "created", inserted)
}
