package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// TeacherRepository provides persistence for teachers and their subject
// qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new teacher repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

func (r *TeacherRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const teacherColumns = `id, school_id, email, full_name, phone, status, max_daily_periods, availability, created_at, updated_at`

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE id = $1`, teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListActiveBySchool returns active teachers for a school ordered by name.
func (r *TeacherRepository) ListActiveBySchool(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	query := fmt.Sprintf(`SELECT %s FROM teachers WHERE school_id = $1 AND status = $2 ORDER BY full_name ASC`, teacherColumns)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, schoolID, models.TeacherStatusActive); err != nil {
		return nil, fmt.Errorf("list teachers by school: %w", err)
	}
	return teachers, nil
}

// ListQualified returns active teachers of the school qualified for the
// subject, ordered alphabetically for deterministic candidate ranking.
func (r *TeacherRepository) ListQualified(ctx context.Context, schoolID, subjectID string) ([]models.Teacher, error) {
	query := fmt.Sprintf(`SELECT t.%s
FROM teachers t
JOIN teacher_subjects ts ON ts.teacher_id = t.id
WHERE t.school_id = $1 AND ts.subject_id = $2 AND t.status = $3
ORDER BY t.full_name ASC`, teacherColumnsPrefixed)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, schoolID, subjectID, models.TeacherStatusActive); err != nil {
		return nil, fmt.Errorf("list qualified teachers: %w", err)
	}
	return teachers, nil
}

// IsQualified reports whether a teacher can teach the subject.
func (r *TeacherRepository) IsQualified(ctx context.Context, teacherID, subjectID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, subjectID); err != nil {
		return false, fmt.Errorf("check teacher qualification: %w", err)
	}
	return exists, nil
}

// MarkLeftSchool flips a teacher to the left-school status.
func (r *TeacherRepository) MarkLeftSchool(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE teachers SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query, models.TeacherStatusLeftSchool, time.Now().UTC(), id, models.TeacherStatusActive)
	if err != nil {
		return fmt.Errorf("mark teacher left school: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("teacher status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// teacherColumnsPrefixed mirrors teacherColumns with a table alias for joins.
const teacherColumnsPrefixed = `id, t.school_id, t.email, t.full_name, t.phone, t.status, t.max_daily_periods, t.availability, t.created_at, t.updated_at`
