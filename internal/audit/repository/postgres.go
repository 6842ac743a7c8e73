package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tm65023/Story/internal/audit/domain"
	"github.com/tm65023/Story/internal/db"
)

// PostgresRepository writes audit_logs rows. It runs on a *sql.DB or inside a transaction.
type PostgresRepository struct {
	db db.DBTX
}

func NewPostgresRepository(q db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create inserts one row. Empty UserID and Metadata are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, uid, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
