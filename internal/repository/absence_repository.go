package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// AbsenceRepository persists recorded teacher absences.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository creates a new absence repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// Create records an absence for a teacher on a date.
func (r *AbsenceRepository) Create(ctx context.Context, absence *models.TeacherAbsence) error {
	if absence == nil {
		return fmt.Errorf("absence payload is nil")
	}
	if absence.ID == "" {
		absence.ID = uuid.NewString()
	}
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO teacher_absences (id, teacher_id, school_id, date, reason, created_at)
VALUES (:id, :teacher_id, :school_id, :date, :reason, :created_at)
ON CONFLICT (teacher_id, date) DO UPDATE SET reason = EXCLUDED.reason`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, absence); err != nil {
		return fmt.Errorf("insert teacher absence: %w", err)
	}
	return nil
}

// ExistsOn reports whether the teacher has a recorded absence on the date.
func (r *AbsenceRepository) ExistsOn(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_absences WHERE teacher_id = $1 AND date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, date); err != nil {
		return false, fmt.Errorf("check teacher absence: %w", err)
	}
	return exists, nil
}

// ListByDate returns all absences in a school for the given date.
func (r *AbsenceRepository) ListByDate(ctx context.Context, schoolID string, date time.Time) ([]models.TeacherAbsence, error) {
	const query = `SELECT id, teacher_id, school_id, date, reason, created_at
FROM teacher_absences WHERE school_id = $1 AND date = $2 ORDER BY teacher_id ASC`
	var absences []models.TeacherAbsence
	if err := r.db.SelectContext(ctx, &absences, query, schoolID, date); err != nil {
		return nil, fmt.Errorf("list absences by date: %w", err)
	}
	return absences, nil
}
