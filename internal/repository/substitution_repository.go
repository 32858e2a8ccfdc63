package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// SubstitutionRepository persists substitution proposals and decisions.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository creates a new substitution repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

func (r *SubstitutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const substitutionColumns = `id, timetable_entry_id, original_teacher_id, substitute_teacher_id, school_id, date, reason, status, is_auto_generated, created_at, updated_at`

// Create stores a new substitution record.
func (r *SubstitutionRepository) Create(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error {
	if sub == nil {
		return fmt.Errorf("substitution payload is nil")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	const query = `
INSERT INTO substitutions (id, timetable_entry_id, original_teacher_id, substitute_teacher_id, school_id, date, reason, status, is_auto_generated, created_at, updated_at)
VALUES (:id, :timetable_entry_id, :original_teacher_id, :substitute_teacher_id, :school_id, :date, :reason, :status, :is_auto_generated, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sub); err != nil {
		return fmt.Errorf("insert substitution: %w", err)
	}
	return nil
}

// FindByID loads a substitution by id.
func (r *SubstitutionRepository) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	query := fmt.Sprintf(`SELECT %s FROM substitutions WHERE id = $1`, substitutionColumns)
	var sub models.Substitution
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// TransitionStatus advances the state machine, guarded by the allowed source
// states so a decided record cannot be re-decided.
func (r *SubstitutionRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, to models.SubstitutionStatus, from ...models.SubstitutionStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("transition requires at least one source status")
	}
	placeholders := make([]string, len(from))
	args := []interface{}{to, time.Now().UTC(), id}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE substitutions SET status = $1, updated_at = $2 WHERE id = $3 AND status IN (%s)`, strings.Join(placeholders, ", "))

	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition substitution status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("substitution transition rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns substitutions matching the filter, newest first.
func (r *SubstitutionRepository) List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error) {
	base := fmt.Sprintf(`SELECT %s FROM substitutions WHERE 1=1`, substitutionColumns)
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY created_at DESC"

	var subs []models.Substitution
	if err := r.db.SelectContext(ctx, &subs, base, args...); err != nil {
		return nil, fmt.Errorf("list substitutions: %w", err)
	}
	return subs, nil
}
