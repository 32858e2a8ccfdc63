package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type versioningWeeklyRecorder struct {
	bumps       []int
	upserts     []models.WeeklyEntry
	replaced    [][]models.WeeklyEntry
	deactivated []string
	bumpErr     error
}

func (s *versioningWeeklyRecorder) BumpVersion(ctx context.Context, exec sqlx.ExtContext, layerID string, expectedVersion int, modifiedBy string) error {
	if s.bumpErr != nil {
		return s.bumpErr
	}
	s.bumps = append(s.bumps, expectedVersion)
	return nil
}

func (s *versioningWeeklyRecorder) UpsertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.WeeklyEntry) error {
	s.upserts = append(s.upserts, *entry)
	return nil
}

func (s *versioningWeeklyRecorder) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, layerID string, entries []models.WeeklyEntry) error {
	s.replaced = append(s.replaced, entries)
	return nil
}

func (s *versioningWeeklyRecorder) Deactivate(ctx context.Context, exec sqlx.ExtContext, layerID string) error {
	s.deactivated = append(s.deactivated, layerID)
	return nil
}

func seededLayer(weekStart time.Time) *models.WeeklyTimetable {
	t1 := "t1"
	t9 := "t9"
	math := "math"
	return &models.WeeklyTimetable{
		ID:        "wk-1",
		ClassID:   "class-1",
		SchoolID:  "school-1",
		WeekStart: weekStart,
		Version:   2,
		Entries: []models.WeeklyEntry{
			{Day: 1, Period: 1, Kind: models.OverrideInherited, TeacherID: &t1, SubjectID: &math, StartTime: "08:00", EndTime: "08:45"},
			{Day: 1, Period: 2, Kind: models.OverrideAssigned, TeacherID: &t9, SubjectID: &math, StartTime: "08:45", EndTime: "09:30"},
			{Day: 2, Period: 1, Kind: models.OverrideCancelled, StartTime: "08:00", EndTime: "08:45"},
		},
	}
}

func newVersioningFixture(t *testing.T, layer *models.WeeklyTimetable, baseline *baselineStoreRecorder) (*VersioningService, *versioningWeeklyRecorder, *layerProviderStub, *auditRecorder) {
	weekly := &versioningWeeklyRecorder{}
	layers := &layerProviderStub{layers: map[string]*models.WeeklyTimetable{}}
	if layer != nil {
		layers.layers[weeklyKey(layer.ClassID, layer.WeekStart)] = layer
	}
	audit := &auditRecorder{}
	svc := NewVersioningService(baseline, weekly, layers, newTxStub(t), audit, nil, nil)
	return svc, weekly, layers, audit
}

func TestUpdateWeeklyEntryAssign(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, weekly, layers, _ := newVersioningFixture(t, seededLayer(weekStart), &baselineStoreRecorder{})

	version, err := svc.UpdateWeeklyEntry(context.Background(), dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2026-03-02",
		Day:       1,
		Period:    1,
		Action:    dto.WeeklyEntryActionAssign,
		TeacherID: "t5",
		SubjectID: "math",
		Reason:    "manual swap",
		Version:   2,
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, 3, version)

	require.Equal(t, []int{2}, weekly.bumps)
	require.Len(t, weekly.upserts, 1)
	require.Equal(t, models.OverrideAssigned, weekly.upserts[0].Kind)
	require.Equal(t, "t5", *weekly.upserts[0].TeacherID)
	require.Equal(t, "08:00", weekly.upserts[0].StartTime)
	require.Equal(t, []string{"class-1"}, layers.invalidated)
}

func TestUpdateWeeklyEntryCancel(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, weekly, _, _ := newVersioningFixture(t, seededLayer(weekStart), &baselineStoreRecorder{})

	_, err := svc.UpdateWeeklyEntry(context.Background(), dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2026-03-02",
		Day:       1,
		Period:    2,
		Action:    dto.WeeklyEntryActionCancel,
		Reason:    "assembly",
		Version:   2,
	}, "admin-1")
	require.NoError(t, err)
	require.Len(t, weekly.upserts, 1)
	require.Equal(t, models.OverrideCancelled, weekly.upserts[0].Kind)
	require.Nil(t, weekly.upserts[0].TeacherID)
}

func TestUpdateWeeklyEntryStaleVersion(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, weekly, _, _ := newVersioningFixture(t, seededLayer(weekStart), &baselineStoreRecorder{})
	weekly.bumpErr = repository.ErrStaleVersion

	_, err := svc.UpdateWeeklyEntry(context.Background(), dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2026-03-02",
		Day:       1,
		Period:    1,
		Action:    dto.WeeklyEntryActionCancel,
		Reason:    "late edit",
		Version:   1,
	}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStaleWrite.Code, appErrors.FromError(err).Code)
	require.Empty(t, weekly.upserts)
}

func TestUpdateWeeklyEntryUnknownSlot(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc, _, _, _ := newVersioningFixture(t, seededLayer(weekStart), &baselineStoreRecorder{})

	_, err := svc.UpdateWeeklyEntry(context.Background(), dto.UpdateWeeklyEntryRequest{
		ClassID:   "class-1",
		WeekStart: "2026-03-02",
		Day:       5,
		Period:    8,
		Action:    dto.WeeklyEntryActionCancel,
		Reason:    "typo",
		Version:   2,
	}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPromoteWeekToGlobal(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	baseline := &baselineStoreRecorder{}
	svc, weekly, _, audit := newVersioningFixture(t, seededLayer(weekStart), baseline)

	result, err := svc.PromoteWeekToGlobal(context.Background(), dto.WeekRequest{
		ClassID: "class-1", WeekStart: "2026-03-02",
	}, "admin-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	// Cancelled cells are not promotable; the inherited and assigned ones are.
	require.Equal(t, 2, result.EntriesCreated)

	require.Equal(t, []string{"class-1"}, baseline.deactivated)
	require.Len(t, baseline.inserted, 2)
	require.Equal(t, "t1", baseline.inserted[0].TeacherID)
	require.Equal(t, "t9", baseline.inserted[1].TeacherID)
	require.Equal(t, []string{"wk-1"}, weekly.deactivated)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionWeeklyPromote, audit.logs[0].Action)
}

func TestPromoteWeekWithNothingPromotable(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	layer := &models.WeeklyTimetable{
		ID: "wk-1", ClassID: "class-1", SchoolID: "school-1", WeekStart: weekStart, Version: 1,
		Entries: []models.WeeklyEntry{
			{Day: 1, Period: 1, Kind: models.OverrideCancelled, StartTime: "08:00", EndTime: "08:45"},
		},
	}
	baseline := &baselineStoreRecorder{}
	svc, _, _, _ := newVersioningFixture(t, layer, baseline)

	_, err := svc.PromoteWeekToGlobal(context.Background(), dto.WeekRequest{
		ClassID: "class-1", WeekStart: "2026-03-02",
	}, "admin-1")
	require.Error(t, err)
	require.Empty(t, baseline.deactivated)
}

func TestResetWeekFromGlobal(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	baseline := &baselineStoreRecorder{byClass: []models.BaselineEntry{
		{ID: "base-1", ClassID: "class-1", TeacherID: "t1", SubjectID: "math", SchoolID: "school-1", Day: 1, Period: 1, StartTime: "08:00", EndTime: "08:45"},
		{ID: "base-2", ClassID: "class-1", TeacherID: "t2", SubjectID: "art", SchoolID: "school-1", Day: 1, Period: 2, StartTime: "08:45", EndTime: "09:30"},
	}}
	svc, weekly, _, _ := newVersioningFixture(t, seededLayer(weekStart), baseline)

	result, err := svc.ResetWeekFromGlobal(context.Background(), dto.WeekRequest{
		ClassID: "class-1", WeekStart: "2026-03-02",
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.EntriesCreated)

	require.Len(t, weekly.replaced, 1)
	for _, entry := range weekly.replaced[0] {
		require.Equal(t, models.OverrideInherited, entry.Kind)
		require.NotNil(t, entry.TeacherID)
	}
}

func TestResetWeekFromGlobalIsIdempotent(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	baseline := &baselineStoreRecorder{byClass: []models.BaselineEntry{
		{ID: "base-1", ClassID: "class-1", TeacherID: "t1", SubjectID: "math", SchoolID: "school-1", Day: 1, Period: 1, StartTime: "08:00", EndTime: "08:45"},
	}}
	svc, weekly, _, _ := newVersioningFixture(t, seededLayer(weekStart), baseline)

	req := dto.WeekRequest{ClassID: "class-1", WeekStart: "2026-03-02"}
	_, err := svc.ResetWeekFromGlobal(context.Background(), req, "admin-1")
	require.NoError(t, err)
	_, err = svc.ResetWeekFromGlobal(context.Background(), req, "admin-1")
	require.NoError(t, err)

	require.Len(t, weekly.replaced, 2)
	require.Equal(t, weekly.replaced[0], weekly.replaced[1])
}

func TestPromoteThenResetReproducesPromotedWeek(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	baseline := &baselineStoreRecorder{}
	svc, weekly, _, _ := newVersioningFixture(t, seededLayer(weekStart), baseline)

	req := dto.WeekRequest{ClassID: "class-1", WeekStart: "2026-03-02"}
	_, err := svc.PromoteWeekToGlobal(context.Background(), req, "admin-1")
	require.NoError(t, err)
	require.Len(t, baseline.inserted, 2)

	// The promoted entries are now the active baseline.
	baseline.byClass = baseline.inserted

	result, err := svc.ResetWeekFromGlobal(context.Background(), req, "admin-1")
	require.NoError(t, err)
	require.Equal(t, len(baseline.inserted), result.EntriesCreated)

	require.Len(t, weekly.replaced, 1)
	require.Len(t, weekly.replaced[0], len(baseline.inserted))
	for i, entry := range weekly.replaced[0] {
		promoted := baseline.inserted[i]
		require.Equal(t, models.OverrideInherited, entry.Kind)
		require.Equal(t, promoted.Day, entry.Day)
		require.Equal(t, promoted.Period, entry.Period)
		require.Equal(t, promoted.TeacherID, *entry.TeacherID)
		require.Equal(t, promoted.SubjectID, *entry.SubjectID)
		require.Equal(t, promoted.StartTime, entry.StartTime)
		require.Equal(t, promoted.EndTime, entry.EndTime)
	}
}
