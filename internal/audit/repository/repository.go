package repository

import (
	"context"

	"github.com/tm65023/Story/internal/audit/domain"
)

// Repository appends to the audit trail. Entries are never updated or deleted by the service.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
}
