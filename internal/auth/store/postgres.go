// Package store binds the user and one-time code repositories to a shared Postgres transaction.
package store

import (
	"context"
	"database/sql"

	"github.com/tm65023/Story/internal/db"
	otprepo "github.com/tm65023/Story/internal/otp/repository"
	userrepo "github.com/tm65023/Story/internal/user/repository"
)

// PostgresStore is the credential store backed by the users and one_time_codes tables.
type PostgresStore struct {
	db *sql.DB
	tx db.TxRunner
}

// NewPostgresStore returns a store whose transactions run at read committed.
func NewPostgresStore(sqlDB *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlDB, tx: db.NewTxManager(sqlDB)}
}

// Users returns a user repository outside any transaction.
func (s *PostgresStore) Users() userrepo.Repository {
	return userrepo.NewPostgresRepository(s.db)
}

// Codes returns a code repository outside any transaction.
func (s *PostgresStore) Codes() otprepo.Repository {
	return otprepo.NewPostgresRepository(s.db)
}

// WithTx runs fn with both repositories bound to a single transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, users userrepo.Repository, codes otprepo.Repository) error) error {
	return s.tx.WithTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, userrepo.NewPostgresRepository(tx), otprepo.NewPostgresRepository(tx))
	})
}
