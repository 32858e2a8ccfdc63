package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type substitutionTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ListQualified(ctx context.Context, schoolID, subjectID string) ([]models.Teacher, error)
	MarkLeftSchool(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type substitutionBaselineStore interface {
	FindByID(ctx context.Context, id string) (*models.BaselineEntry, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error)
	ListActiveByTeacher(ctx context.Context, teacherID string) ([]models.BaselineEntry, error)
	ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, originalTeacherID, replacementTeacherID string) (int64, error)
}

type substitutionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, sub *models.Substitution) error
	FindByID(ctx context.Context, id string) (*models.Substitution, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, to models.SubstitutionStatus, from ...models.SubstitutionStatus) error
	List(ctx context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error)
}

type changeStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, change *models.TimetableChange) error
	Approve(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time, approvedBy string) error
	DeactivateForEntryDate(ctx context.Context, exec sqlx.ExtContext, timetableEntryID string, changeDate time.Time) error
}

type weeklyWriteStore interface {
	BumpVersion(ctx context.Context, exec sqlx.ExtContext, layerID string, expectedVersion int, modifiedBy string) error
	UpsertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.WeeklyEntry) error
	ReassignTeacher(ctx context.Context, exec sqlx.ExtContext, layerID, originalTeacherID, replacementTeacherID, reason string) (int64, error)
}

type replacementStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, replacement *models.TeacherReplacement) error
}

type absenceStore interface {
	Create(ctx context.Context, absence *models.TeacherAbsence) error
	ExistsOn(ctx context.Context, teacherID string, date time.Time) (bool, error)
}

type availabilityChecker interface {
	IsAvailable(ctx context.Context, teacherID string, day, period int, date time.Time, excludeClassID string) bool
}

type layerProvider interface {
	GetOrCreateLayer(ctx context.Context, classID string, weekStart time.Time) (*models.WeeklyTimetable, error)
	Invalidate(ctx context.Context, classID string)
}

// SubstitutionServiceConfig governs replacement behaviour.
type SubstitutionServiceConfig struct {
	// ReplacementHorizon is how many weeks beyond the current one a
	// permanent replacement rewrites.
	ReplacementHorizon int
}

// SubstitutionService runs the absence-to-replacement workflow: candidate
// search, auto-assignment, the approval state machine, and permanent
// teacher replacement.
type SubstitutionService struct {
	teachers      substitutionTeacherStore
	baseline      substitutionBaselineStore
	substitutions substitutionStore
	changes       changeStore
	weekly        weeklyWriteStore
	replacements  replacementStore
	absences      absenceStore
	availability  availabilityChecker
	layers        layerProvider
	tx            txProvider
	audit         auditLogger
	validator     *validator.Validate
	cfg           SubstitutionServiceConfig
	logger        *zap.Logger
}

// NewSubstitutionService wires the substitution workflow.
func NewSubstitutionService(
	teachers substitutionTeacherStore,
	baseline substitutionBaselineStore,
	substitutions substitutionStore,
	changes changeStore,
	weekly weeklyWriteStore,
	replacements replacementStore,
	absences absenceStore,
	availability availabilityChecker,
	layers layerProvider,
	tx txProvider,
	audit auditLogger,
	validate *validator.Validate,
	cfg SubstitutionServiceConfig,
	logger *zap.Logger,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReplacementHorizon <= 0 {
		cfg.ReplacementHorizon = 3
	}
	return &SubstitutionService{
		teachers:      teachers,
		baseline:      baseline,
		substitutions: substitutions,
		changes:       changes,
		weekly:        weekly,
		replacements:  replacements,
		absences:      absences,
		availability:  availability,
		layers:        layers,
		tx:            tx,
		audit:         audit,
		validator:     validate,
		cfg:           cfg,
		logger:        logger,
	}
}

// FindSubstitutes returns qualified, available candidates for one entry on
// one date. Teachers already teaching the class rank first, then the list
// stays alphabetical.
func (s *SubstitutionService) FindSubstitutes(ctx context.Context, req dto.FindSubstitutesRequest, schoolID string) ([]dto.SubstituteCandidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute search")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	entry, err := s.baseline.FindByID(ctx, req.EntryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}

	classEntries, err := s.baseline.ListActiveByClass(ctx, entry.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class timetable")
	}
	teachesClass := make(map[string]bool)
	for _, classEntry := range classEntries {
		teachesClass[classEntry.TeacherID] = true
	}

	qualified, err := s.teachers.ListQualified(ctx, schoolID, entry.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualified teachers")
	}

	var candidates []dto.SubstituteCandidate
	for _, teacher := range qualified {
		if teacher.ID == req.TeacherID || teacher.Status != models.TeacherStatusActive {
			continue
		}
		if !s.availability.IsAvailable(ctx, teacher.ID, entry.Day, entry.Period, date, entry.ClassID) {
			continue
		}
		candidates = append(candidates, dto.SubstituteCandidate{
			TeacherID:     teacher.ID,
			FullName:      teacher.FullName,
			TeachesClass:  teachesClass[teacher.ID],
			QualifiedFor:  entry.SubjectID,
			AlreadyLoaded: s.dailyLoad(ctx, teacher.ID, entry.Day),
		})
	}

	// Qualified list is alphabetical; only the class affinity reorders it.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TeachesClass && !candidates[j].TeachesClass
	})
	return candidates, nil
}

func (s *SubstitutionService) dailyLoad(ctx context.Context, teacherID string, day int) int {
	entries, err := s.baseline.ListActiveByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Warn("failed to compute daily load", zap.String("teacher_id", teacherID), zap.Error(err))
		return 0
	}
	load := 0
	for _, entry := range entries {
		if entry.Day == day {
			load++
		}
	}
	return load
}

// AutoAssign picks the top candidate for an entry/date and records the
// proposal. With no candidate it still records a pending substitution so the
// gap surfaces as an alert instead of vanishing.
func (s *SubstitutionService) AutoAssign(ctx context.Context, req dto.AutoAssignRequest, schoolID, actorID string) (*models.Substitution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-assign request")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	entry, err := s.baseline.FindByID(ctx, req.EntryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}

	candidates, err := s.FindSubstitutes(ctx, dto.FindSubstitutesRequest{
		TeacherID: entry.TeacherID,
		EntryID:   entry.ID,
		Date:      req.Date,
	}, schoolID)
	if err != nil {
		return nil, err
	}

	sub := &models.Substitution{
		TimetableEntryID:  entry.ID,
		OriginalTeacherID: entry.TeacherID,
		SchoolID:          schoolID,
		Date:              date,
		Reason:            req.Reason,
		Status:            models.SubstitutionStatusPending,
		IsAutoGenerated:   true,
	}

	if len(candidates) == 0 {
		if err := s.substitutions.Create(ctx, nil, sub); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pending substitution")
		}
		s.writeAudit(ctx, actorID, schoolID, models.AuditActionSubstitutionCreate, sub.ID,
			fmt.Sprintf("no substitute found for entry %s on %s", entry.ID, req.Date))
		return sub, nil
	}

	pick := candidates[0]
	sub.SubstituteTeacherID = &pick.TeacherID
	sub.Status = models.SubstitutionStatusAutoAssigned

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.substitutions.Create(ctx, tx, sub); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record substitution")
		return nil, err
	}
	change := &models.TimetableChange{
		TimetableEntryID:  entry.ID,
		ClassID:           entry.ClassID,
		SchoolID:          schoolID,
		ChangeType:        models.ChangeTypeSubstitution,
		ChangeDate:        date,
		OriginalTeacherID: entry.TeacherID,
		NewTeacherID:      &pick.TeacherID,
		Reason:            req.Reason,
		IsActive:          true,
	}
	if err = s.changes.Create(ctx, tx, change); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable change")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit auto-assignment")
		return nil, err
	}

	s.writeAudit(ctx, actorID, schoolID, models.AuditActionSubstitutionCreate, sub.ID,
		fmt.Sprintf("auto-assigned %s for entry %s on %s", pick.TeacherID, entry.ID, req.Date))
	return sub, nil
}

// Approve confirms a substitution and writes it into the weekly layer.
// Re-approving a decided record fails rather than silently succeeding.
func (s *SubstitutionService) Approve(ctx context.Context, substitutionID, actorID string) (*models.Substitution, error) {
	sub, err := s.substitutions.FindByID(ctx, substitutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	if sub.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "substitution already decided")
	}
	if sub.SubstituteTeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitution has no substitute teacher to approve")
	}

	entry, err := s.baseline.FindByID(ctx, sub.TimetableEntryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}

	layer, err := s.layers.GetOrCreateLayer(ctx, entry.ClassID, WeekStartOf(sub.Date))
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.substitutions.TransitionStatus(ctx, tx, sub.ID, models.SubstitutionStatusConfirmed,
		models.SubstitutionStatusPending, models.SubstitutionStatusAutoAssigned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "substitution already decided")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm substitution")
		}
		return nil, err
	}

	if err = s.weekly.BumpVersion(ctx, tx, layer.ID, layer.Version, actorID); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			err = appErrors.Clone(appErrors.ErrStaleWrite, "weekly layer changed underneath the approval, retry")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to version weekly layer")
		}
		return nil, err
	}

	reason := sub.Reason
	subjectID := entry.SubjectID
	weeklyEntry := &models.WeeklyEntry{
		WeeklyTimetableID:  layer.ID,
		Day:                entry.Day,
		Period:             entry.Period,
		Kind:               models.OverrideAssigned,
		TeacherID:          sub.SubstituteTeacherID,
		SubjectID:          &subjectID,
		StartTime:          entry.StartTime,
		EndTime:            entry.EndTime,
		Room:               entry.Room,
		ModificationReason: &reason,
	}
	if err = s.weekly.UpsertEntry(ctx, tx, weeklyEntry); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write weekly override")
		return nil, err
	}

	if err = s.changes.Approve(ctx, tx, sub.TimetableEntryID, sub.Date, actorID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve change record")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
		return nil, err
	}

	s.layers.Invalidate(ctx, entry.ClassID)
	s.writeAudit(ctx, actorID, sub.SchoolID, models.AuditActionSubstitutionApprove, sub.ID,
		fmt.Sprintf("approved substitute %s for entry %s on %s", *sub.SubstituteTeacherID, entry.ID, sub.Date.Format(dateLayout)))

	sub.Status = models.SubstitutionStatusConfirmed
	return sub, nil
}

// Reject closes a substitution without touching the weekly layer; only the
// proposal and its unapproved change record disappear.
func (s *SubstitutionService) Reject(ctx context.Context, substitutionID, actorID string) (*models.Substitution, error) {
	sub, err := s.substitutions.FindByID(ctx, substitutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution")
	}
	if sub.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "substitution already decided")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.substitutions.TransitionStatus(ctx, tx, sub.ID, models.SubstitutionStatusRejected,
		models.SubstitutionStatusPending, models.SubstitutionStatusAutoAssigned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "substitution already decided")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject substitution")
		}
		return nil, err
	}
	if err = s.changes.DeactivateForEntryDate(ctx, tx, sub.TimetableEntryID, sub.Date); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire change record")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rejection")
		return nil, err
	}

	s.writeAudit(ctx, actorID, sub.SchoolID, models.AuditActionSubstitutionReject, sub.ID,
		fmt.Sprintf("rejected substitution for entry %s on %s", sub.TimetableEntryID, sub.Date.Format(dateLayout)))

	sub.Status = models.SubstitutionStatusRejected
	return sub, nil
}

// PermanentReplace swaps a teacher across the baseline and the current plus
// upcoming weekly layers. Conflicts abort the whole operation before any
// write happens.
func (s *SubstitutionService) PermanentReplace(ctx context.Context, req dto.PermanentReplaceRequest, schoolID, actorID string) (*dto.PermanentReplaceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replacement request")
	}

	replacement, err := s.teachers.FindByID(ctx, req.ReplacementTeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "replacement teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replacement teacher")
	}
	if replacement.Status != models.TeacherStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "replacement teacher is not active")
	}

	originalEntries, err := s.baseline.ListActiveByTeacher(ctx, req.OriginalTeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original teacher entries")
	}
	if len(originalEntries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "original teacher has no active timetable entries")
	}

	replacementEntries, err := s.baseline.ListActiveByTeacher(ctx, req.ReplacementTeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replacement teacher entries")
	}

	if conflicts := replacementConflicts(originalEntries, replacementEntries, req.ReplacementTeacherID); len(conflicts) > 0 {
		return nil, &models.TimetableConflictError{
			Message:   "replacement teacher is already scheduled in conflicting slots",
			Conflicts: conflicts,
		}
	}

	affectedClasses := make(map[string]bool)
	for _, entry := range originalEntries {
		affectedClasses[entry.ClassID] = true
	}

	// Materialize every touched layer before opening the transaction so the
	// in-tx writes only update existing rows.
	currentWeek := WeekStartOf(time.Now())
	type targetLayer struct {
		layer   *models.WeeklyTimetable
		classID string
	}
	var layers []targetLayer
	for classID := range affectedClasses {
		for week := 0; week <= s.cfg.ReplacementHorizon; week++ {
			layer, err := s.layers.GetOrCreateLayer(ctx, classID, currentWeek.AddDate(0, 0, 7*week))
			if err != nil {
				return nil, err
			}
			layers = append(layers, targetLayer{layer: layer, classID: classID})
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	affected, err := s.baseline.ReassignTeacher(ctx, tx, req.OriginalTeacherID, req.ReplacementTeacherID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite baseline")
		return nil, err
	}

	if err = s.teachers.MarkLeftSchool(ctx, tx, req.OriginalTeacherID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire original teacher")
		return nil, err
	}

	weeksUpdated := 0
	for _, target := range layers {
		if err = s.weekly.BumpVersion(ctx, tx, target.layer.ID, target.layer.Version, actorID); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				err = appErrors.Clone(appErrors.ErrStaleWrite, "weekly layer changed during replacement, retry")
			} else {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to version weekly layer")
			}
			return nil, err
		}
		changed, reassignErr := s.weekly.ReassignTeacher(ctx, tx, target.layer.ID, req.OriginalTeacherID, req.ReplacementTeacherID, req.Reason)
		if reassignErr != nil {
			err = appErrors.Wrap(reassignErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite weekly layer")
			return nil, err
		}
		if changed > 0 {
			weeksUpdated++
		}
	}

	record := &models.TeacherReplacement{
		OriginalTeacherID:    req.OriginalTeacherID,
		ReplacementTeacherID: req.ReplacementTeacherID,
		SchoolID:             schoolID,
		Reason:               req.Reason,
		AffectedEntries:      int(affected),
		Status:               models.ReplacementStatusCompleted,
	}
	if err = s.replacements.Create(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record replacement")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit replacement")
		return nil, err
	}

	for classID := range affectedClasses {
		s.layers.Invalidate(ctx, classID)
	}
	s.writeAudit(ctx, actorID, schoolID, models.AuditActionTeacherReplace, record.ID,
		fmt.Sprintf("replaced %s with %s across %d entries", req.OriginalTeacherID, req.ReplacementTeacherID, affected))

	return &dto.PermanentReplaceResult{
		ReplacementID:   record.ID,
		AffectedEntries: int(affected),
		WeeksUpdated:    weeksUpdated,
	}, nil
}

func replacementConflicts(originalEntries, replacementEntries []models.BaselineEntry, replacementTeacherID string) []models.TimetableConflict {
	occupied := make(map[slotKey]models.BaselineEntry, len(replacementEntries))
	for _, entry := range replacementEntries {
		occupied[slotKey{entry.Day, entry.Period}] = entry
	}

	var conflicts []models.TimetableConflict
	for _, entry := range originalEntries {
		existing, clash := occupied[slotKey{entry.Day, entry.Period}]
		if !clash {
			continue
		}
		conflicts = append(conflicts, models.TimetableConflict{
			Type:      models.ConflictReplacementClash,
			Day:       entry.Day,
			Period:    entry.Period,
			TeacherID: replacementTeacherID,
			ClassIDs:  []string{entry.ClassID, existing.ClassID},
			Detail:    fmt.Sprintf("replacement already teaches class %s on day %d period %d", existing.ClassID, entry.Day, entry.Period),
		})
	}
	return conflicts
}

// MarkAbsent records an absence and reports the baseline entries it hits.
func (s *SubstitutionService) MarkAbsent(ctx context.Context, req dto.MarkAbsentRequest, schoolID, actorID string) (*dto.AbsenceImpact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence request")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if schoolID != "" && teacher.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher belongs to another school")
	}

	absence := &models.TeacherAbsence{
		TeacherID: teacher.ID,
		SchoolID:  teacher.SchoolID,
		Date:      date,
		Reason:    req.Reason,
	}
	if err := s.absences.Create(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record absence")
	}

	entries, err := s.baseline.ListActiveByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affected entries")
	}
	day := ISOWeekday(date)
	var affected []models.BaselineEntry
	for _, entry := range entries {
		if entry.Day == day {
			affected = append(affected, entry)
		}
	}

	s.writeAudit(ctx, actorID, teacher.SchoolID, models.AuditActionAbsenceRecord, teacher.ID,
		fmt.Sprintf("recorded absence on %s affecting %d periods", req.Date, len(affected)))

	return &dto.AbsenceImpact{
		Absence:         *absence,
		AffectedEntries: affected,
	}, nil
}

// List returns substitutions for the school matching the query.
func (s *SubstitutionService) List(ctx context.Context, query dto.SubstitutionQuery, schoolID string) ([]models.Substitution, error) {
	filter := models.SubstitutionFilter{SchoolID: schoolID}
	if query.Status != "" {
		filter.Status = models.SubstitutionStatus(query.Status)
	}
	if query.Date != "" {
		date, err := ParseDate(query.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		filter.Date = &date
	}

	subs, err := s.substitutions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list substitutions")
	}
	return subs, nil
}

func (s *SubstitutionService) writeAudit(ctx context.Context, actorID, schoolID, action, entityID, description string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		SchoolID:    schoolID,
		Action:      action,
		EntityType:  "substitution",
		Description: description,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if entityID != "" {
		log.EntityID = &entityID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
