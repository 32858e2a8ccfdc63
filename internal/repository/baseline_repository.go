package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// BaselineRepository persists the long-lived global timetable. Entries are
// superseded rather than rewritten: a regeneration deactivates the old set
// and inserts a new one.
type BaselineRepository struct {
	db *sqlx.DB
}

// NewBaselineRepository creates a new baseline repository.
func NewBaselineRepository(db *sqlx.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

func (r *BaselineRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const baselineColumns = `id, class_id, teacher_id, subject_id, school_id, day, period, start_time, end_time, room, is_active, created_at, updated_at`

// FindByID loads a baseline entry by id regardless of active state.
func (r *BaselineRepository) FindByID(ctx context.Context, id string) (*models.BaselineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM baseline_entries WHERE id = $1`, baselineColumns)
	var entry models.BaselineEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListActiveByClass returns the active baseline for a class ordered by day/period.
func (r *BaselineRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM baseline_entries WHERE class_id = $1 AND is_active = TRUE ORDER BY day ASC, period ASC`, baselineColumns)
	var entries []models.BaselineEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list baseline by class: %w", err)
	}
	return entries, nil
}

// ListActiveByTeacher returns a teacher's active baseline entries across classes.
func (r *BaselineRepository) ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.BaselineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM baseline_entries WHERE teacher_id = $1 AND is_active = TRUE ORDER BY day ASC, period ASC`, baselineColumns)
	var entries []models.BaselineEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list baseline by teacher: %w", err)
	}
	return entries, nil
}

// ListActiveBySchool returns every active baseline entry for validation scans.
func (r *BaselineRepository) ListActiveBySchool(ctx context.Context, schoolID string) ([]models.BaselineEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM baseline_entries WHERE school_id = $1 AND is_active = TRUE ORDER BY class_id ASC, day ASC, period ASC`, baselineColumns)
	var entries []models.BaselineEntry
	if err := r.db.SelectContext(ctx, &entries, query, schoolID); err != nil {
		return nil, fmt.Errorf("list baseline by school: %w", err)
	}
	return entries, nil
}

// DeactivateByClass supersedes a class's active baseline set.
func (r *BaselineRepository) DeactivateByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error) {
	const query = `UPDATE baseline_entries SET is_active = FALSE, updated_at = $1 WHERE class_id = $2 AND is_active = TRUE`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query, time.Now().UTC(), classID)
	if err != nil {
		return 0, fmt.Errorf("deactivate baseline by class: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("baseline deactivate rows affected: %w", err)
	}
	return affected, nil
}

// InsertBatch stores a freshly generated active baseline set.
func (r *BaselineRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.BaselineEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO baseline_entries (id, class_id, teacher_id, subject_id, school_id, day, period, start_time, end_time, room, is_active, created_at, updated_at)
VALUES (:id, :class_id, :teacher_id, :subject_id, :school_id, :day, :period, :start_time, :end_time, :room, :is_active, :created_at, :updated_at)`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.IsActive = true
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert baseline entry: %w", err)
		}
	}
	return nil
}

// ReassignTeacher rewrites teacher_id on every active entry of the original
// teacher. Callers validate replacement conflicts before invoking this.
func (r *BaselineRepository) ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, originalTeacherID, replacementTeacherID string) (int64, error) {
	const query = `UPDATE baseline_entries SET teacher_id = $1, updated_at = $2 WHERE teacher_id = $3 AND is_active = TRUE`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query, replacementTeacherID, time.Now().UTC(), originalTeacherID)
	if err != nil {
		return 0, fmt.Errorf("reassign baseline teacher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("baseline reassign rows affected: %w", err)
	}
	return affected, nil
}
