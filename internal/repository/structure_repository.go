package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// StructureRepository loads timetable structures per school.
type StructureRepository struct {
	db *sqlx.DB
}

// NewStructureRepository creates a new structure repository.
func NewStructureRepository(db *sqlx.DB) *StructureRepository {
	return &StructureRepository{db: db}
}

// GetBySchool returns the structure configured for a school.
func (r *StructureRepository) GetBySchool(ctx context.Context, schoolID string) (*models.TimetableStructure, error) {
	const query = `SELECT id, school_id, days_per_week, periods_per_day, time_slots, created_at, updated_at
FROM timetable_structures WHERE school_id = $1`
	var structure models.TimetableStructure
	if err := r.db.GetContext(ctx, &structure, query, schoolID); err != nil {
		return nil, err
	}
	return &structure, nil
}
