package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// AuditRepository is the append-only audit log sink.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog appends an audit trail record.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return fmt.Errorf("audit log payload is nil")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO audit_logs (id, user_id, school_id, action, entity_type, entity_id, description, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :school_id, :action, :entity_type, :entity_id, :description, :ip_address, :user_agent, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
