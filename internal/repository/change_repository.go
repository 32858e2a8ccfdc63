package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// ChangeRepository persists append-only timetable change records.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository creates a new change repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

func (r *ChangeRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const changeColumns = `id, timetable_entry_id, class_id, school_id, change_type, change_date, original_teacher_id, new_teacher_id, reason, approved_by, is_active, created_at`

// Create appends a change record.
func (r *ChangeRepository) Create(ctx context.Context, exec sqlx.ExtContext, change *models.TimetableChange) error {
	if change == nil {
		return fmt.Errorf("change payload is nil")
	}
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_changes (id, timetable_entry_id, class_id, school_id, change_type, change_date, original_teacher_id, new_teacher_id, reason, approved_by, is_active, created_at)
VALUES (:id, :timetable_entry_id, :class_id, :school_id, :change_type, :change_date, :original_teacher_id, :new_teacher_id, :reason, :approved_by, :is_active, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, change); err != nil {
		return fmt.Errorf("insert timetable change: %w", err)
	}
	return nil
}

// Approve stamps the approver on a change raised by a substitution proposal.
func (r *ChangeRepository) Approve(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time, approvedBy string) error {
	const query = `
UPDATE timetable_changes SET approved_by = $1
WHERE timetable_entry_id = $2 AND change_date = $3 AND change_type = $4 AND is_active = TRUE AND approved_by IS NULL`
	if _, err := r.exec(exec).ExecContext(ctx, query, approvedBy, timetableEntryID, changeDate, models.ChangeTypeSubstitution); err != nil {
		return fmt.Errorf("approve timetable change: %w", err)
	}
	return nil
}

// DeactivateForEntryDate retires change records for a rejected proposal.
func (r *ChangeRepository) DeactivateForEntryDate(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time) error {
	const query = `
UPDATE timetable_changes SET is_active = FALSE
WHERE timetable_entry_id = $1 AND change_date = $2 AND is_active = TRUE`
	if _, err := r.exec(exec).ExecContext(ctx, query, timetableEntryID, changeDate); err != nil {
		return fmt.Errorf("deactivate timetable change: %w", err)
	}
	return nil
}

// ListApprovedByClassDate returns approved, active changes for a class/date,
// used by single-date effective views.
func (r *ChangeRepository) ListApprovedByClassDate(ctx context.Context, classID string, date time.Time) ([]models.TimetableChange, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_changes
WHERE class_id = $1 AND change_date = $2 AND is_active = TRUE
  AND (change_type = $3 OR approved_by IS NOT NULL)
ORDER BY created_at ASC`, changeColumns)
	var changes []models.TimetableChange
	if err := r.db.SelectContext(ctx, &changes, query, classID, date, models.ChangeTypeCancellation); err != nil {
		return nil, fmt.Errorf("list approved timetable changes: %w", err)
	}
	return changes, nil
}
