package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// ClassRepository provides read access to classes, subjects and the
// class-subject assignments that drive baseline generation.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID loads a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, school_id, name, grade, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindSubjectByID loads a subject by id.
func (r *ClassRepository) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, school_id, name, code, created_at, updated_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListAssignments returns the subject assignments for a class ordered by
// subject for deterministic generation.
func (r *ClassRepository) ListAssignments(ctx context.Context, classID string) ([]models.ClassSubjectAssignment, error) {
	const query = `SELECT id, class_id, subject_id, school_id, weekly_frequency, assigned_teacher_id, created_at, updated_at
FROM class_subject_assignments WHERE class_id = $1 ORDER BY subject_id ASC`
	var assignments []models.ClassSubjectAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list class subject assignments: %w", err)
	}
	return assignments, nil
}

// ListClassIDsByTeacher returns distinct classes a teacher currently teaches
// in the active baseline.
func (r *ClassRepository) ListClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM baseline_entries WHERE teacher_id = $1 AND is_active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classes by teacher: %w", err)
	}
	return ids, nil
}
