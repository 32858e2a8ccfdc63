package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type baselineClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListAssignments(ctx context.Context, classID string) ([]models.ClassSubjectAssignment, error)
}

type baselineStructureReader interface {
	GetBySchool(ctx context.Context, schoolID string) (*models.TimetableStructure, error)
}

type baselineStore interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error)
	ListActiveBySchool(ctx context.Context, schoolID string) ([]models.BaselineEntry, error)
	DeactivateByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.BaselineEntry) error
}

type baselineWeeklyPruner interface {
	DeleteFromWeek(ctx context.Context, exec sqlx.ExtContext, classID string, fromWeekStart time.Time) (int64, error)
}

type baselineTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type scheduleCacheInvalidator interface {
	InvalidateClass(ctx context.Context, classID string) error
}

// BaselineService generates and validates the long-lived global timetable.
// Generation is a greedy weekday walk; it places subjects without checking
// cross-class teacher conflicts, leaving those to ValidateTimetable. The
// substitution workflow depends on this split, so placement stays cheap and
// deterministic while conflicts surface in one scan.
type BaselineService struct {
	classes   baselineClassReader
	structure baselineStructureReader
	baseline  baselineStore
	weekly    baselineWeeklyPruner
	teachers  baselineTeacherReader
	cache     scheduleCacheInvalidator
	tx        txProvider
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBaselineService wires the baseline generator.
func NewBaselineService(
	classes baselineClassReader,
	structure baselineStructureReader,
	baseline baselineStore,
	weekly baselineWeeklyPruner,
	teachers baselineTeacherReader,
	cache scheduleCacheInvalidator,
	tx txProvider,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *BaselineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaselineService{
		classes:   classes,
		structure: structure,
		baseline:  baseline,
		weekly:    weekly,
		teachers:  teachers,
		cache:     cache,
		tx:        tx,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Generate builds a fresh active baseline for the class, superseding any
// previous active set in the same transaction.
func (s *BaselineService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, schoolID, actorID string) (*dto.GenerateTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate request")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if schoolID != "" && class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another school")
	}

	entries, err := s.buildEntries(ctx, class)
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

	if _, err = s.baseline.DeactivateByClass(ctx, tx, class.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede previous baseline")
		return nil, err
	}
	if err = s.baseline.InsertBatch(ctx, tx, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist baseline entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit baseline")
		return nil, err
	}

	s.invalidate(ctx, class.ID)
	s.writeAudit(ctx, actorID, class.SchoolID, models.AuditActionBaselineGenerate, class.ID,
		fmt.Sprintf("generated baseline with %d entries", len(entries)))

	return &dto.GenerateTimetableResult{
		Success:        true,
		Message:        "timetable generated",
		EntriesCreated: len(entries),
	}, nil
}

// Refresh regenerates the baseline and drops the class's weekly layers from
// the current week onward. Elapsed weeks keep their layers so history stays
// reproducible.
func (s *BaselineService) Refresh(ctx context.Context, req dto.GenerateTimetableRequest, schoolID, actorID string) (*dto.GenerateTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh request")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if schoolID != "" && class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another school")
	}

	entries, err := s.buildEntries(ctx, class)
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

	if _, err = s.baseline.DeactivateByClass(ctx, tx, class.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede previous baseline")
		return nil, err
	}
	if err = s.baseline.InsertBatch(ctx, tx, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist baseline entries")
		return nil, err
	}
	if _, err = s.weekly.DeleteFromWeek(ctx, tx, class.ID, WeekStartOf(time.Now())); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune weekly layers")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit refresh")
		return nil, err
	}

	s.invalidate(ctx, class.ID)
	s.writeAudit(ctx, actorID, class.SchoolID, models.AuditActionBaselineRefresh, class.ID,
		fmt.Sprintf("refreshed baseline with %d entries, upcoming weekly layers discarded", len(entries)))

	return &dto.GenerateTimetableResult{
		Success:        true,
		Message:        "timetable refreshed",
		EntriesCreated: len(entries),
	}, nil
}

// buildEntries runs the greedy placement over the class's assignments.
func (s *BaselineService) buildEntries(ctx context.Context, class *models.Class) ([]models.BaselineEntry, error) {
	assignments, err := s.classes.ListAssignments(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject assignments")
	}
	var assignable []models.ClassSubjectAssignment
	for _, assignment := range assignments {
		if assignment.AssignedTeacherID != nil && *assignment.AssignedTeacherID != "" {
			assignable = append(assignable, assignment)
		}
	}
	if len(assignable) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class has no subject assignments with a teacher")
	}

	structure, err := s.structure.GetBySchool(ctx, class.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no timetable structure configured for school")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable structure")
	}

	var slots []models.TimeSlot
	if err := json.Unmarshal(structure.TimeSlots, &slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed time slot table")
	}
	slotByPeriod := make(map[int]models.TimeSlot, len(slots))
	for _, slot := range slots {
		slotByPeriod[slot.Period] = slot
	}

	teachingDays := structure.DaysPerWeek
	if teachingDays > 5 {
		teachingDays = 5
	}

	used := make(map[[2]int]bool)
	var entries []models.BaselineEntry

	for _, assignment := range assignable {
		remaining := assignment.WeeklyFrequency
		dailyPeriods := 1
		if remaining > 5 {
			dailyPeriods = (remaining + 4) / 5
		}

		for day := 1; day <= teachingDays && remaining > 0; day++ {
			placedToday := 0
			for period := 1; period <= structure.PeriodsPerDay && placedToday < dailyPeriods && remaining > 0; period++ {
				slot, ok := slotByPeriod[period]
				if !ok || slot.IsBreak {
					continue
				}
				key := [2]int{day, period}
				if used[key] {
					continue
				}
				used[key] = true
				entries = append(entries, models.BaselineEntry{
					ClassID:   class.ID,
					TeacherID: *assignment.AssignedTeacherID,
					SubjectID: assignment.SubjectID,
					SchoolID:  class.SchoolID,
					Day:       day,
					Period:    period,
					StartTime: slot.StartTime,
					EndTime:   slot.EndTime,
				})
				placedToday++
				remaining--
			}
		}

		if remaining > 0 {
			s.logger.Warn("subject could not be fully placed",
				zap.String("class_id", class.ID),
				zap.String("subject_id", assignment.SubjectID),
				zap.Int("unplaced", remaining))
		}
	}

	return entries, nil
}

// Validate scans the school's active baseline and reports structural
// conflicts. Generation defers cross-class checks to this pass.
func (s *BaselineService) Validate(ctx context.Context, schoolID string) (*models.TimetableValidation, error) {
	entries, err := s.baseline.ListActiveBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline entries")
	}

	var conflicts []models.TimetableConflict
	conflicts = append(conflicts, s.doubleBookings(entries)...)
	conflicts = append(conflicts, s.underScheduledClasses(ctx, entries)...)

	overloaded, err := s.overloadedTeachers(ctx, entries)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, overloaded...)

	return &models.TimetableValidation{
		IsValid:   len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

func (s *BaselineService) doubleBookings(entries []models.BaselineEntry) []models.TimetableConflict {
	type slotKey struct {
		TeacherID string
		Day       int
		Period    int
	}
	byTeacherSlot := make(map[slotKey][]string)
	for _, entry := range entries {
		key := slotKey{entry.TeacherID, entry.Day, entry.Period}
		byTeacherSlot[key] = append(byTeacherSlot[key], entry.ClassID)
	}

	var conflicts []models.TimetableConflict
	for key, classIDs := range byTeacherSlot {
		if len(classIDs) < 2 {
			continue
		}
		conflicts = append(conflicts, models.TimetableConflict{
			Type:      models.ConflictTeacherDoubleBooked,
			Day:       key.Day,
			Period:    key.Period,
			TeacherID: key.TeacherID,
			ClassIDs:  classIDs,
			Detail:    fmt.Sprintf("teacher %s booked in %d classes on day %d period %d", key.TeacherID, len(classIDs), key.Day, key.Period),
		})
	}
	return conflicts
}

func (s *BaselineService) underScheduledClasses(ctx context.Context, entries []models.BaselineEntry) []models.TimetableConflict {
	scheduled := make(map[string]int)
	for _, entry := range entries {
		scheduled[entry.ClassID]++
	}

	var conflicts []models.TimetableConflict
	for classID, count := range scheduled {
		assignments, err := s.classes.ListAssignments(ctx, classID)
		if err != nil {
			s.logger.Warn("validation assignment lookup failed", zap.String("class_id", classID), zap.Error(err))
			continue
		}
		required := 0
		for _, assignment := range assignments {
			if assignment.AssignedTeacherID != nil {
				required += assignment.WeeklyFrequency
			}
		}
		if required > count {
			conflicts = append(conflicts, models.TimetableConflict{
				Type:     models.ConflictClassUnderScheduled,
				ClassIDs: []string{classID},
				Detail:   fmt.Sprintf("class %s has %d scheduled periods but subjects require %d", classID, count, required),
			})
		}
	}
	return conflicts
}

func (s *BaselineService) overloadedTeachers(ctx context.Context, entries []models.BaselineEntry) ([]models.TimetableConflict, error) {
	type dailyKey struct {
		TeacherID string
		Day       int
	}
	daily := make(map[dailyKey]int)
	for _, entry := range entries {
		daily[dailyKey{entry.TeacherID, entry.Day}]++
	}

	limits := make(map[string]int)
	var conflicts []models.TimetableConflict
	for key, count := range daily {
		limit, ok := limits[key.TeacherID]
		if !ok {
			teacher, err := s.teachers.FindByID(ctx, key.TeacherID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher for validation")
			}
			limit = teacher.MaxDailyPeriods
			limits[key.TeacherID] = limit
		}
		if limit > 0 && count > limit {
			conflicts = append(conflicts, models.TimetableConflict{
				Type:      models.ConflictTeacherOverloaded,
				Day:       key.Day,
				TeacherID: key.TeacherID,
				Detail:    fmt.Sprintf("teacher %s has %d periods on day %d, limit %d", key.TeacherID, count, key.Day, limit),
			})
		}
	}
	return conflicts, nil
}

func (s *BaselineService) invalidate(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateClass(ctx, classID); err != nil {
		s.logger.Warn("failed to invalidate schedule cache", zap.String("class_id", classID), zap.Error(err))
	}
}

func (s *BaselineService) writeAudit(ctx context.Context, actorID, schoolID, action, entityID, description string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		SchoolID:    schoolID,
		Action:      action,
		EntityType:  "timetable",
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
