package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// ReplacementRepository persists permanent teacher replacement audit records.
type ReplacementRepository struct {
	db *sqlx.DB
}

// NewReplacementRepository creates a new replacement repository.
func NewReplacementRepository(db *sqlx.DB) *ReplacementRepository {
	return &ReplacementRepository{db: db}
}

func (r *ReplacementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores a replacement record.
func (r *ReplacementRepository) Create(ctx context.Context, exec sqlx.ExtContext, replacement *models.TeacherReplacement) error {
	if replacement == nil {
		return fmt.Errorf("replacement payload is nil")
	}
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	if replacement.Status == "" {
		replacement.Status = models.ReplacementStatusCompleted
	}
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO teacher_replacements (id, original_teacher_id, replacement_teacher_id, school_id, reason, affected_entries, status, created_at)
VALUES (:id, :original_teacher_id, :replacement_teacher_id, :school_id, :reason, :affected_entries, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, replacement); err != nil {
		return fmt.Errorf("insert teacher replacement: %w", err)
	}
	return nil
}
