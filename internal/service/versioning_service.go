package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/repository"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
)

type versioningBaselineStore interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.BaselineEntry, error)
	DeactivateByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.BaselineEntry) error
}

type versioningWeeklyStore interface {
	BumpVersion(ctx context.Context, exec sqlx.ExtContext, layerID string, expectedVersion int, modifiedBy string) error
	UpsertEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.WeeklyEntry) error
	ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, layerID string, entries []models.WeeklyEntry) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, layerID string) error
}

// VersioningService copies state between the baseline and weekly layers:
// manual weekly edits, promotion of a week into the baseline, and resetting
// a week back to the baseline.
type VersioningService struct {
	baseline  versioningBaselineStore
	weekly    versioningWeeklyStore
	layers    layerProvider
	tx        txProvider
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVersioningService wires the promotion paths.
func NewVersioningService(
	baseline versioningBaselineStore,
	weekly versioningWeeklyStore,
	layers layerProvider,
	tx txProvider,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *VersioningService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersioningService{
		baseline:  baseline,
		weekly:    weekly,
		layers:    layers,
		tx:        tx,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// UpdateWeeklyEntry applies one manual override to a weekly layer, guarded
// by the layer version the client last saw.
func (s *VersioningService) UpdateWeeklyEntry(ctx context.Context, req dto.UpdateWeeklyEntryRequest, actorID string) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly edit")
	}
	weekStart, err := ParseDate(req.WeekStart)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD")
	}
	weekStart = WeekStartOf(weekStart)

	layer, err := s.layers.GetOrCreateLayer(ctx, req.ClassID, weekStart)
	if err != nil {
		return 0, err
	}

	var slotTemplate *models.WeeklyEntry
	for i := range layer.Entries {
		if layer.Entries[i].Day == req.Day && layer.Entries[i].Period == req.Period {
			slotTemplate = &layer.Entries[i]
			break
		}
	}
	if slotTemplate == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no timetable slot at the requested day and period")
	}

	expected := req.Version
	if expected == 0 {
		expected = layer.Version
	}

	reason := req.Reason
	entry := &models.WeeklyEntry{
		WeeklyTimetableID:  layer.ID,
		Day:                req.Day,
		Period:             req.Period,
		StartTime:          slotTemplate.StartTime,
		EndTime:            slotTemplate.EndTime,
		ModificationReason: &reason,
	}
	switch req.Action {
	case dto.WeeklyEntryActionAssign:
		teacherID := req.TeacherID
		subjectID := req.SubjectID
		entry.Kind = models.OverrideAssigned
		entry.TeacherID = &teacherID
		entry.SubjectID = &subjectID
		entry.Room = req.Room
	case dto.WeeklyEntryActionCancel:
		entry.Kind = models.OverrideCancelled
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, "action must be assign or cancel")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.weekly.BumpVersion(ctx, tx, layer.ID, expected, actorID); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			err = appErrors.Clone(appErrors.ErrStaleWrite, "weekly layer was modified by someone else, reload and retry")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to version weekly layer")
		}
		return 0, err
	}
	if err = s.weekly.UpsertEntry(ctx, tx, entry); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write weekly entry")
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit weekly edit")
		return 0, err
	}

	s.layers.Invalidate(ctx, req.ClassID)
	s.writeAudit(ctx, actorID, layer.SchoolID, models.AuditActionWeeklyEdit, layer.ID,
		fmt.Sprintf("%s day %d period %d for week %s", req.Action, req.Day, req.Period, req.WeekStart))

	return expected + 1, nil
}

// PromoteWeekToGlobal makes a week's overrides the new baseline. The layer
// is retired afterwards so the week reads from the fresh baseline.
func (s *VersioningService) PromoteWeekToGlobal(ctx context.Context, req dto.WeekRequest, actorID string) (*dto.GenerateTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote request")
	}
	weekStart, err := ParseDate(req.WeekStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD")
	}

	layer, err := s.layers.GetOrCreateLayer(ctx, req.ClassID, WeekStartOf(weekStart))
	if err != nil {
		return nil, err
	}

	var promoted []models.BaselineEntry
	for _, entry := range layer.Entries {
		if entry.Kind == models.OverrideCancelled || entry.TeacherID == nil || entry.SubjectID == nil {
			continue
		}
		promoted = append(promoted, models.BaselineEntry{
			ClassID:   layer.ClassID,
			TeacherID: *entry.TeacherID,
			SubjectID: *entry.SubjectID,
			SchoolID:  layer.SchoolID,
			Day:       entry.Day,
			Period:    entry.Period,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			Room:      entry.Room,
		})
	}
	if len(promoted) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekly layer has no promotable entries")
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

	if _, err = s.baseline.DeactivateByClass(ctx, tx, layer.ClassID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede baseline")
		return nil, err
	}
	if err = s.baseline.InsertBatch(ctx, tx, promoted); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write promoted baseline")
		return nil, err
	}
	if err = s.weekly.Deactivate(ctx, tx, layer.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire weekly layer")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit promotion")
		return nil, err
	}

	s.layers.Invalidate(ctx, layer.ClassID)
	s.writeAudit(ctx, actorID, layer.SchoolID, models.AuditActionWeeklyPromote, layer.ID,
		fmt.Sprintf("promoted week %s to baseline with %d entries", req.WeekStart, len(promoted)))

	return &dto.GenerateTimetableResult{
		Success:        true,
		Message:        "week promoted to baseline",
		EntriesCreated: len(promoted),
	}, nil
}

// ResetWeekFromGlobal discards a week's overrides and re-copies the current
// baseline. Running it twice in a row is a no-op the second time.
func (s *VersioningService) ResetWeekFromGlobal(ctx context.Context, req dto.WeekRequest, actorID string) (*dto.GenerateTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset request")
	}
	weekStart, err := ParseDate(req.WeekStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD")
	}
	weekStart = WeekStartOf(weekStart)

	baselineEntries, err := s.baseline.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline entries")
	}
	if len(baselineEntries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class has no active baseline")
	}

	layer, err := s.layers.GetOrCreateLayer(ctx, req.ClassID, weekStart)
	if err != nil {
		return nil, err
	}

	fresh := materializeLayer(req.ClassID, layer.SchoolID, weekStart, baselineEntries)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.weekly.BumpVersion(ctx, tx, layer.ID, layer.Version, actorID); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			err = appErrors.Clone(appErrors.ErrStaleWrite, "weekly layer changed during reset, retry")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to version weekly layer")
		}
		return nil, err
	}
	if err = s.weekly.ReplaceEntries(ctx, tx, layer.ID, fresh.Entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite weekly entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reset")
		return nil, err
	}

	s.layers.Invalidate(ctx, req.ClassID)
	s.writeAudit(ctx, actorID, layer.SchoolID, models.AuditActionWeeklyReset, layer.ID,
		fmt.Sprintf("reset week %s from baseline with %d entries", req.WeekStart, len(fresh.Entries)))

	return &dto.GenerateTimetableResult{
		Success:        true,
		Message:        "week reset from baseline",
		EntriesCreated: len(fresh.Entries),
	}, nil
}

func (s *VersioningService) writeAudit(ctx context.Context, actorID, schoolID, action, entityID, description string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		SchoolID:    schoolID,
		Action:      action,
		EntityType:  "weekly_timetable",
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
