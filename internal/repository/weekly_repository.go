package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aabhi25/chronalive/internal/models"
)

// ErrStaleVersion is returned when a writer's version check fails; callers
// should re-read the layer and retry instead of overwriting newer state.
var ErrStaleVersion = errors.New("weekly timetable version mismatch")

// WeeklyRepository persists per-class, per-week override layers. Every
// mutation goes through a version check on the owning layer row so
// concurrent read-modify-write cycles cannot silently clobber each other.
type WeeklyRepository struct {
	db *sqlx.DB
}

// NewWeeklyRepository creates a new weekly repository.
func NewWeeklyRepository(db *sqlx.DB) *WeeklyRepository {
	return &WeeklyRepository{db: db}
}

func (r *WeeklyRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const weeklyColumns = `id, class_id, school_id, week_start, week_end, version, modified_by, modification_count, is_active, created_at, updated_at`
const weeklyEntryColumns = `id, weekly_timetable_id, day, period, kind, teacher_id, subject_id, start_time, end_time, room, modification_reason, created_at, updated_at`

// FindByClassWeek loads the active layer for (class, week) including entries.
func (r *WeeklyRepository) FindByClassWeek(ctx context.Context, classID string, weekStart time.Time) (*models.WeeklyTimetable, error) {
	query := fmt.Sprintf(`SELECT %s FROM weekly_timetables WHERE class_id = $1 AND week_start = $2 AND is_active = TRUE`, weeklyColumns)
	var layer models.WeeklyTimetable
	if err := r.db.GetContext(ctx, &layer, query, classID, weekStart); err != nil {
		return nil, err
	}
	entries, err := r.listEntries(ctx, layer.ID)
	if err != nil {
		return nil, err
	}
	layer.Entries = entries
	return &layer, nil
}

func (r *WeeklyRepository) listEntries(ctx context.Context, layerID string) ([]models.WeeklyEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM weekly_entries WHERE weekly_timetable_id = $1 ORDER BY day ASC, period ASC`, weeklyEntryColumns)
	var entries []models.WeeklyEntry
	if err := r.db.SelectContext(ctx, &entries, query, layerID); err != nil {
		return nil, fmt.Errorf("list weekly entries: %w", err)
	}
	return entries, nil
}

// Create inserts a layer with its entries at version 1.
func (r *WeeklyRepository) Create(ctx context.Context, exec sqlx.ExtContext, layer *models.WeeklyTimetable) error {
	if layer == nil {
		return fmt.Errorf("weekly layer payload is nil")
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	if layer.ID == "" {
		layer.ID = uuid.NewString()
	}
	layer.Version = 1
	layer.IsActive = true
	if layer.CreatedAt.IsZero() {
		layer.CreatedAt = now
	}
	layer.UpdatedAt = now

	const insertLayer = `
INSERT INTO weekly_timetables (id, class_id, school_id, week_start, week_end, version, modified_by, modification_count, is_active, created_at, updated_at)
VALUES (:id, :class_id, :school_id, :week_start, :week_end, :version, :modified_by, :modification_count, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertLayer, layer); err != nil {
		return fmt.Errorf("insert weekly timetable: %w", err)
	}

	return r.insertEntries(ctx, target, layer.ID, layer.Entries, now)
}

func (r *WeeklyRepository) insertEntries(ctx context.Context, target sqlx.ExtContext, layerID string, entries []models.WeeklyEntry, now time.Time) error {
	const query = `
INSERT INTO weekly_entries (id, weekly_timetable_id, day, period, kind, teacher_id, subject_id, start_time, end_time, room, modification_reason, created_at, updated_at)
VALUES (:id, :weekly_timetable_id, :day, :period, :kind, :teacher_id, :subject_id, :start_time, :end_time, :room, :modification_reason, :created_at, :updated_at)`
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.WeeklyTimetableID = layerID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert weekly entry: %w", err)
		}
	}
	return nil
}

// BumpVersion applies the optimistic-concurrency check for a write to the
// layer. A zero rowcount means another writer got there first.
func (r *WeeklyRepository) BumpVersion(ctx context.Context, exec sqlx.ExtContext, layerID string, expectedVersion int, modifiedBy string) error {
	const query = `
UPDATE weekly_timetables
SET version = version + 1, modification_count = modification_count + 1, modified_by = $1, updated_at = $2
WHERE id = $3 AND version = $4 AND is_active = TRUE`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query, modifiedBy, time.Now().UTC(), layerID, expectedVersion)
	if err != nil {
		return fmt.Errorf("bump weekly version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("weekly version rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// UpsertEntry writes one cell of a layer, replacing any existing entry for
// the same (day, period).
func (r *WeeklyRepository) UpsertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.WeeklyEntry) error {
	if entry == nil {
		return fmt.Errorf("weekly entry payload is nil")
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `
INSERT INTO weekly_entries (id, weekly_timetable_id, day, period, kind, teacher_id, subject_id, start_time, end_time, room, modification_reason, created_at, updated_at)
VALUES (:id, :weekly_timetable_id, :day, :period, :kind, :teacher_id, :subject_id, :start_time, :end_time, :room, :modification_reason, :created_at, :updated_at)
ON CONFLICT (weekly_timetable_id, day, period) DO UPDATE
SET kind = EXCLUDED.kind,
    teacher_id = EXCLUDED.teacher_id,
    subject_id = EXCLUDED.subject_id,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    room = EXCLUDED.room,
    modification_reason = EXCLUDED.modification_reason,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
		return fmt.Errorf("upsert weekly entry: %w", err)
	}
	return nil
}

// ReassignTeacher rewrites a teacher across a layer's non-cancelled entries,
// marking them as overrides with the provided reason.
func (r *WeeklyRepository) ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, layerID, originalTeacherID, replacementTeacherID, reason string) (int64, error) {
	const query = `
UPDATE weekly_entries
SET teacher_id = $1, kind = $2, modification_reason = $3, updated_at = $4
WHERE weekly_timetable_id = $5 AND teacher_id = $6 AND kind <> $7`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query,
		replacementTeacherID, models.OverrideAssigned, reason, time.Now().UTC(),
		layerID, originalTeacherID, models.OverrideCancelled)
	if err != nil {
		return 0, fmt.Errorf("reassign weekly teacher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("weekly reassign rows affected: %w", err)
	}
	return affected, nil
}

// ReplaceEntries swaps the full entry set of a layer (used by week reset).
func (r *WeeklyRepository) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, layerID string, entries []models.WeeklyEntry) error {
	target := r.exec(exec)
	const clear = `DELETE FROM weekly_entries WHERE weekly_timetable_id = $1`
	if _, err := target.ExecContext(ctx, clear, layerID); err != nil {
		return fmt.Errorf("clear weekly entries: %w", err)
	}
	return r.insertEntries(ctx, target, layerID, entries, time.Now().UTC())
}

// Deactivate retires a layer (after promotion to the baseline).
func (r *WeeklyRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, layerID string) error {
	const query = `UPDATE weekly_timetables SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active = TRUE`
	target := r.exec(exec)
	result, err := target.ExecContext(ctx, query, time.Now().UTC(), layerID)
	if err != nil {
		return fmt.Errorf("deactivate weekly timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("weekly deactivate rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteFromWeek removes layers for a class starting at the given week.
// Weeks before the cutoff stay untouched so elapsed history stays auditable.
func (r *WeeklyRepository) DeleteFromWeek(ctx context.Context, exec sqlx.ExtContext, classID string, fromWeekStart time.Time) (int64, error) {
	target := r.exec(exec)
	const clearEntries = `
DELETE FROM weekly_entries WHERE weekly_timetable_id IN (
	SELECT id FROM weekly_timetables WHERE class_id = $1 AND week_start >= $2)`
	if _, err := target.ExecContext(ctx, clearEntries, classID, fromWeekStart); err != nil {
		return 0, fmt.Errorf("clear weekly entries from week: %w", err)
	}
	const clearLayers = `DELETE FROM weekly_timetables WHERE class_id = $1 AND week_start >= $2`
	result, err := target.ExecContext(ctx, clearLayers, classID, fromWeekStart)
	if err != nil {
		return 0, fmt.Errorf("delete weekly timetables from week: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("weekly delete rows affected: %w", err)
	}
	return affected, nil
}

// ListTeacherEntriesForWeek returns a teacher's non-cancelled override
// entries across all classes for a calendar week, for availability checks.
func (r *WeeklyRepository) ListTeacherEntriesForWeek(ctx context.Context, teacherID string, weekStart time.Time) ([]models.WeeklyEntry, error) {
	const query = `
SELECT e.id, e.weekly_timetable_id, e.day, e.period, e.kind, e.teacher_id, e.subject_id, e.start_time, e.end_time, e.room, e.modification_reason, e.created_at, e.updated_at
FROM weekly_entries e
JOIN weekly_timetables w ON w.id = e.weekly_timetable_id
WHERE e.teacher_id = $1 AND w.week_start = $2 AND w.is_active = TRUE AND e.kind <> $3
ORDER BY e.day ASC, e.period ASC`
	var entries []models.WeeklyEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, weekStart, models.OverrideCancelled); err != nil {
		return nil, fmt.Errorf("list teacher weekly entries: %w", err)
	}
	return entries, nil
}
