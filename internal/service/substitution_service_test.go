package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type subTeacherStoreStub struct {
	teachers  map[string]*models.Teacher
	qualified []models.Teacher
	left      []string
}

func (s *subTeacherStoreStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, ok := s.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return teacher, nil
}

func (s *subTeacherStoreStub) ListQualified(ctx context.Context, schoolID, subjectID string) ([]models.Teacher, error) {
	return s.qualified, nil
}

func (s *subTeacherStoreStub) MarkLeftSchool(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.left = append(s.left, id)
	return nil
}

type subBaselineStub struct {
	entries    map[string]*models.BaselineEntry
	byClass    map[string][]models.BaselineEntry
	byTeacher  map[string][]models.BaselineEntry
	reassigned [][2]string
}

func (s *subBaselineStub) FindByID(ctx context.Context, id string) (*models.BaselineEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return entry, nil
}

func (s *subBaselineStub) ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error) {
	return s.byClass[classID], nil
}

func (s *subBaselineStub) ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.BaselineEntry, error) {
	return s.byTeacher[teacherID], nil
}

func (s *subBaselineStub) ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, originalTeacherID, replacementTeacherID string) (int64, error) {
	s.reassigned = append(s.reassigned, [2]string{originalTeacherID, replacementTeacherID})
	return int64(len(s.byTeacher[originalTeacherID])), nil
}

type subStoreStub struct {
	records map[string]*models.Substitution
}

func newSubStoreStub() *subStoreStub {
	return &subStoreStub{records: make(map[string]*models.Substitution)}
}

func (s *subStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	copied := *sub
	s.records[sub.ID] = &copied
	return nil
}

func (s *subStoreStub) FindByID(ctx context.Context, id string) (*models.Substitution, error) {
	sub, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sub
	return &copied, nil
}

func (s *subStoreStub) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, to models.SubstitutionStatus, from ...models.SubstitutionStatus) error {
	sub, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, status := range from {
		if sub.Status == status {
			sub.Status = to
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *subStoreStub) List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error) {
	var out []models.Substitution
	for _, sub := range s.records {
		out = append(out, *sub)
	}
	return out, nil
}

type changeStoreRecorder struct {
	created     []models.TimetableChange
	approved    []string
	deactivated []string
}

func (s *changeStoreRecorder) Create(ctx context.Context, exec sqlx.ExtContext, change *models.TimetableChange) error {
	s.created = append(s.created, *change)
	return nil
}

func (s *changeStoreRecorder) Approve(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time, approvedBy string) error {
	s.approved = append(s.approved, timetableEntryID)
	return nil
}

func (s *changeStoreRecorder) DeactivateForEntryDate(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time) error {
	s.deactivated = append(s.deactivated, timetableEntryID)
	return nil
}

type weeklyWriteRecorder struct {
	bumps      []string
	upserts    []models.WeeklyEntry
	reassigned []string
	bumpErr    error
}

func (s *weeklyWriteRecorder) BumpVersion(ctx context.Context, exec sqlx.ExtContext, layerID string, expectedVersion int, modifiedBy string) error {
	if s.bumpErr != nil {
		return s.bumpErr
	}
	s.bumps = append(s.bumps, layerID)
	return nil
}

func (s *weeklyWriteRecorder) UpsertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.WeeklyEntry) error {
	s.upserts = append(s.upserts, *entry)
	return nil
}

func (s *weeklyWriteRecorder) ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, layerID, originalTeacherID, replacementTeacherID, reason string) (int64, error) {
	s.reassigned = append(s.reassigned, layerID)
	return 1, nil
}

type replacementRecorder struct {
	records []models.TeacherReplacement
}

func (s *replacementRecorder) Create(ctx context.Context, exec sqlx.ExtContext, replacement *models.TeacherReplacement) error {
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	s.records = append(s.records, *replacement)
	return nil
}

type absenceStoreStub struct {
	created []models.TeacherAbsence
	absent  map[string]bool
}

func (s *absenceStoreStub) Create(ctx context.Context, absence *models.TeacherAbsence) error {
	s.created = append(s.created, *absence)
	return nil
}

func (s *absenceStoreStub) ExistsOn(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	return s.absent[teacherID], nil
}

type availabilityStubChecker struct {
	unavailable map[string]bool
}

func (s availabilityStubChecker) IsAvailable(ctx context.Context, teacherID string, day, period int, date time.Time, excludeClassID string) bool {
	return !s.unavailable[teacherID]
}

type layerProviderStub struct {
	layers      map[string]*models.WeeklyTimetable
	invalidated []string
}

func (s *layerProviderStub) GetOrCreateLayer(ctx context.Context, classID string, weekStart time.Time) (*models.WeeklyTimetable, error) {
	key := weeklyKey(classID, WeekStartOf(weekStart))
	layer, ok := s.layers[key]
	if !ok {
		layer = &models.WeeklyTimetable{ID: "wk-" + key, ClassID: classID, SchoolID: "school-1", WeekStart: WeekStartOf(weekStart), Version: 1}
		s.layers[key] = layer
	}
	return layer, nil
}

func (s *layerProviderStub) Invalidate(ctx context.Context, classID string) {
	s.invalidated = append(s.invalidated, classID)
}

type substitutionFixture struct {
	svc      *SubstitutionService
	teachers *subTeacherStoreStub
	baseline *subBaselineStub
	subs     *subStoreStub
	changes  *changeStoreRecorder
	weekly   *weeklyWriteRecorder
	repl     *replacementRecorder
	absences *absenceStoreStub
	layers   *layerProviderStub
	audit    *auditRecorder
}

func newSubstitutionFixture(t *testing.T) *substitutionFixture {
	f := &substitutionFixture{
		teachers: &subTeacherStoreStub{teachers: map[string]*models.Teacher{
			"t1": activeTeacher("t1", ""),
			"t2": {ID: "t2", SchoolID: "school-1", FullName: "Alice Ahmad", Status: models.TeacherStatusActive},
			"t3": {ID: "t3", SchoolID: "school-1", FullName: "Budi Chandra", Status: models.TeacherStatusActive},
		}},
		baseline: &subBaselineStub{
			entries: map[string]*models.BaselineEntry{
				"base-1": {ID: "base-1", ClassID: "class-1", TeacherID: "t1", SubjectID: "math", SchoolID: "school-1", Day: 1, Period: 2, StartTime: "08:45", EndTime: "09:30", IsActive: true},
			},
			byClass: map[string][]models.BaselineEntry{
				"class-1": {
					{ID: "base-1", ClassID: "class-1", TeacherID: "t1", SubjectID: "math", Day: 1, Period: 2},
					{ID: "base-9", ClassID: "class-1", TeacherID: "t3", SubjectID: "art", Day: 2, Period: 1},
				},
			},
			byTeacher: map[string][]models.BaselineEntry{},
		},
		subs:     newSubStoreStub(),
		changes:  &changeStoreRecorder{},
		weekly:   &weeklyWriteRecorder{},
		repl:     &replacementRecorder{},
		absences: &absenceStoreStub{absent: map[string]bool{}},
		layers:   &layerProviderStub{layers: map[string]*models.WeeklyTimetable{}},
		audit:    &auditRecorder{},
	}
	f.teachers.qualified = []models.Teacher{*f.teachers.teachers["t2"], *f.teachers.teachers["t3"]}
	f.svc = NewSubstitutionService(
		f.teachers, f.baseline, f.subs, f.changes, f.weekly, f.repl, f.absences,
		availabilityStubChecker{unavailable: map[string]bool{}},
		f.layers, newTxStub(t), f.audit, nil,
		SubstitutionServiceConfig{ReplacementHorizon: 3}, nil,
	)
	return f
}

func TestFindSubstitutesRanksClassTeachersFirst(t *testing.T) {
	f := newSubstitutionFixture(t)

	candidates, err := f.svc.FindSubstitutes(context.Background(), dto.FindSubstitutesRequest{
		TeacherID: "t1", EntryID: "base-1", Date: "2026-03-02",
	}, "school-1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	// t3 already teaches class-1, so it outranks the alphabetically
	// earlier t2.
	require.Equal(t, "t3", candidates[0].TeacherID)
	require.True(t, candidates[0].TeachesClass)
	require.Equal(t, "t2", candidates[1].TeacherID)
	require.False(t, candidates[1].TeachesClass)
}

func TestFindSubstitutesSkipsUnavailable(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.svc.availability = availabilityStubChecker{unavailable: map[string]bool{"t3": true}}

	candidates, err := f.svc.FindSubstitutes(context.Background(), dto.FindSubstitutesRequest{
		TeacherID: "t1", EntryID: "base-1", Date: "2026-03-02",
	}, "school-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "t2", candidates[0].TeacherID)
}

func TestAutoAssignPicksTopCandidate(t *testing.T) {
	f := newSubstitutionFixture(t)

	sub, err := f.svc.AutoAssign(context.Background(), dto.AutoAssignRequest{
		EntryID: "base-1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.SubstitutionStatusAutoAssigned, sub.Status)
	require.NotNil(t, sub.SubstituteTeacherID)
	require.Equal(t, "t3", *sub.SubstituteTeacherID)
	require.True(t, sub.IsAutoGenerated)

	require.Len(t, f.changes.created, 1)
	require.Equal(t, models.ChangeTypeSubstitution, f.changes.created[0].ChangeType)
	require.Nil(t, f.changes.created[0].ApprovedBy)
}

func TestAutoAssignNoCandidateLeavesPendingAlert(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.svc.availability = availabilityStubChecker{unavailable: map[string]bool{"t2": true, "t3": true}}

	sub, err := f.svc.AutoAssign(context.Background(), dto.AutoAssignRequest{
		EntryID: "base-1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.SubstitutionStatusPending, sub.Status)
	require.Nil(t, sub.SubstituteTeacherID)
	require.Empty(t, f.changes.created)
}

func TestApproveWritesWeeklyOverride(t *testing.T) {
	f := newSubstitutionFixture(t)

	created, err := f.svc.AutoAssign(context.Background(), dto.AutoAssignRequest{
		EntryID: "base-1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)

	approved, err := f.svc.Approve(context.Background(), created.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.SubstitutionStatusConfirmed, approved.Status)

	require.Len(t, f.weekly.bumps, 1)
	require.Len(t, f.weekly.upserts, 1)
	override := f.weekly.upserts[0]
	require.Equal(t, models.OverrideAssigned, override.Kind)
	require.Equal(t, "t3", *override.TeacherID)
	require.Equal(t, 1, override.Day)
	require.Equal(t, 2, override.Period)
	require.Equal(t, []string{"base-1"}, f.changes.approved)
	require.Equal(t, []string{"class-1"}, f.layers.invalidated)
}

func TestApproveTwiceFails(t *testing.T) {
	f := newSubstitutionFixture(t)

	created, err := f.svc.AutoAssign(context.Background(), dto.AutoAssignRequest{
		EntryID: "base-1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), created.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), created.ID, "admin-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRejectLeavesWeeklyLayerUntouched(t *testing.T) {
	f := newSubstitutionFixture(t)

	created, err := f.svc.AutoAssign(context.Background(), dto.AutoAssignRequest{
		EntryID: "base-1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(context.Background(), created.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.SubstitutionStatusRejected, rejected.Status)

	require.Empty(t, f.weekly.bumps)
	require.Empty(t, f.weekly.upserts)
	require.Equal(t, []string{"base-1"}, f.changes.deactivated)
}

func TestPermanentReplaceConflictAbortsEverything(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.baseline.byTeacher["t1"] = []models.BaselineEntry{
		{ID: "base-1", ClassID: "class-1", TeacherID: "t1", Day: 2, Period: 3},
	}
	f.baseline.byTeacher["t2"] = []models.BaselineEntry{
		{ID: "base-7", ClassID: "class-3", TeacherID: "t2", Day: 2, Period: 3},
	}

	_, err := f.svc.PermanentReplace(context.Background(), dto.PermanentReplaceRequest{
		OriginalTeacherID: "t1", ReplacementTeacherID: "t2", Reason: "resigned",
	}, "school-1", "admin-1")
	require.Error(t, err)

	var conflictErr *models.TimetableConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	require.Equal(t, models.ConflictReplacementClash, conflictErr.Conflicts[0].Type)

	require.Empty(t, f.baseline.reassigned)
	require.Empty(t, f.teachers.left)
	require.Empty(t, f.repl.records)
}

func TestPermanentReplaceRewritesBaselineAndUpcomingWeeks(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.baseline.byTeacher["t1"] = []models.BaselineEntry{
		{ID: "base-1", ClassID: "class-1", TeacherID: "t1", Day: 1, Period: 2},
		{ID: "base-2", ClassID: "class-1", TeacherID: "t1", Day: 3, Period: 4},
	}

	result, err := f.svc.PermanentReplace(context.Background(), dto.PermanentReplaceRequest{
		OriginalTeacherID: "t1", ReplacementTeacherID: "t2", Reason: "resigned",
	}, "school-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, 2, result.AffectedEntries)
	require.Equal(t, 4, result.WeeksUpdated) // current week plus three ahead

	require.Equal(t, [][2]string{{"t1", "t2"}}, f.baseline.reassigned)
	require.Equal(t, []string{"t1"}, f.teachers.left)
	require.Len(t, f.weekly.bumps, 4)
	require.Len(t, f.repl.records, 1)
	require.Equal(t, models.ReplacementStatusCompleted, f.repl.records[0].Status)
}

func TestMarkAbsentReportsImpact(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.baseline.byTeacher["t1"] = []models.BaselineEntry{
		{ID: "base-1", ClassID: "class-1", TeacherID: "t1", Day: 1, Period: 2},
		{ID: "base-2", ClassID: "class-1", TeacherID: "t1", Day: 3, Period: 4},
	}

	impact, err := f.svc.MarkAbsent(context.Background(), dto.MarkAbsentRequest{
		TeacherID: "t1", Date: "2026-03-02", Reason: "sick leave",
	}, "school-1", "admin-1")
	require.NoError(t, err)
	require.Len(t, f.absences.created, 1)
	// 2026-03-02 is a Monday; only the Monday entry is affected.
	require.Len(t, impact.AffectedEntries, 1)
	require.Equal(t, "base-1", impact.AffectedEntries[0].ID)
}
