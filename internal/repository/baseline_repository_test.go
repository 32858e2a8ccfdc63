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

func newBaselineRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBaselineRepositoryListActiveByClass(t *testing.T) {
	db, mock, cleanup := newBaselineRepoMock(t)
	defer cleanup()

	repo := NewBaselineRepository(db)
	rows := sqlmock.NewRows([]string{"id", "class_id", "teacher_id", "subject_id", "school_id", "day", "period", "start_time", "end_time", "room", "is_active", "created_at", "updated_at"}).
		AddRow("base-1", "class-1", "teacher-1", "subject-1", "school-1", 1, 1, "08:00", "08:45", nil, true, time.Now(), time.Now()).
		AddRow("base-2", "class-1", "teacher-2", "subject-2", "school-1", 1, 2, "08:45", "09:30", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, teacher_id, subject_id")).
		WithArgs("class-1").
		WillReturnRows(rows)

	entries, err := repo.ListActiveByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "teacher-2", entries[1].TeacherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaselineRepositoryDeactivateThenInsertBatch(t *testing.T) {
	db, mock, cleanup := newBaselineRepoMock(t)
	defer cleanup()

	repo := NewBaselineRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE baseline_entries SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO baseline_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO baseline_entries")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	superseded, err := repo.DeactivateByClass(context.Background(), nil, "class-1")
	require.NoError(t, err)
	require.Equal(t, int64(4), superseded)

	entries := []models.BaselineEntry{
		{ClassID: "class-1", TeacherID: "teacher-1", SubjectID: "subject-1", SchoolID: "school-1", Day: 1, Period: 1, StartTime: "08:00", EndTime: "08:45"},
		{ClassID: "class-1", TeacherID: "teacher-2", SubjectID: "subject-2", SchoolID: "school-1", Day: 1, Period: 2, StartTime: "08:45", EndTime: "09:30"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, entries))
	require.NotEmpty(t, entries[0].ID)
	require.True(t, entries[0].IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaselineRepositoryReassignTeacher(t *testing.T) {
	db, mock, cleanup := newBaselineRepoMock(t)
	defer cleanup()

	repo := NewBaselineRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE baseline_entries SET teacher_id")).
		WithArgs("teacher-2", sqlmock.AnyArg(), "teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 7))

	affected, err := repo.ReassignTeacher(context.Background(), nil, "teacher-1", "teacher-2")
	require.NoError(t, err)
	require.Equal(t, int64(7), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
