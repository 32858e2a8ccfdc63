package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/models"
)

func newWeeklyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWeeklyRepositoryFindByClassWeek(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	layerRows := sqlmock.NewRows([]string{"id", "class_id", "school_id", "week_start", "week_end", "version", "modified_by", "modification_count", "is_active", "created_at", "updated_at"}).
		AddRow("wk-1", "class-1", "school-1", weekStart, weekStart.AddDate(0, 0, 6), 3, "admin-1", 2, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, school_id, week_start")).
		WithArgs("class-1", weekStart).
		WillReturnRows(layerRows)

	teacherID := "teacher-1"
	subjectID := "subject-1"
	entryRows := sqlmock.NewRows([]string{"id", "weekly_timetable_id", "day", "period", "kind", "teacher_id", "subject_id", "start_time", "end_time", "room", "modification_reason", "created_at", "updated_at"}).
		AddRow("ent-1", "wk-1", 1, 1, models.OverrideInherited, teacherID, subjectID, "08:00", "08:45", nil, nil, time.Now(), time.Now()).
		AddRow("ent-2", "wk-1", 1, 2, models.OverrideCancelled, nil, nil, "08:45", "09:30", nil, "teacher absent", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, weekly_timetable_id, day, period, kind")).
		WithArgs("wk-1").
		WillReturnRows(entryRows)

	layer, err := repo.FindByClassWeek(context.Background(), "class-1", weekStart)
	require.NoError(t, err)
	require.Equal(t, 3, layer.Version)
	require.Len(t, layer.Entries, 2)
	require.Equal(t, models.OverrideCancelled, layer.Entries[1].Kind)
	require.Nil(t, layer.Entries[1].TeacherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyRepositoryCreateInsertsLayerAndEntries(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	teacherID := "teacher-1"
	subjectID := "subject-1"
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weekly_timetables")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weekly_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	layer := &models.WeeklyTimetable{
		ClassID:   "class-1",
		SchoolID:  "school-1",
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		Entries: []models.WeeklyEntry{
			{Day: 1, Period: 1, Kind: models.OverrideInherited, TeacherID: &teacherID, SubjectID: &subjectID, StartTime: "08:00", EndTime: "08:45"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), nil, layer))
	require.NotEmpty(t, layer.ID)
	require.Equal(t, 1, layer.Version)
	require.Equal(t, layer.ID, layer.Entries[0].WeeklyTimetableID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyRepositoryBumpVersionStale(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_timetables")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.BumpVersion(context.Background(), nil, "wk-1", 4, "admin-1")
	require.ErrorIs(t, err, ErrStaleVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyRepositoryBumpVersionSuccess(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_timetables")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.BumpVersion(context.Background(), nil, "wk-1", 4, "admin-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyRepositoryReassignTeacherSkipsCancelled(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_entries")).
		WithArgs("teacher-2", string(models.OverrideAssigned), "permanent replacement", sqlmock.AnyArg(), "wk-1", "teacher-1", string(models.OverrideCancelled)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.ReassignTeacher(context.Background(), nil, "wk-1", "teacher-1", "teacher-2", "permanent replacement")
	require.NoError(t, err)
	require.Equal(t, int64(3), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeeklyRepositoryDeleteFromWeekPreservesHistory(t *testing.T) {
	db, mock, cleanup := newWeeklyRepoMock(t)
	defer cleanup()

	repo := NewWeeklyRepository(db)
	cutoff := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM weekly_entries")).
		WithArgs("class-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM weekly_timetables")).
		WithArgs("class-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.DeleteFromWeek(context.Background(), nil, "class-1", cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
