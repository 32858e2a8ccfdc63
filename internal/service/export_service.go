package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/pkg/export"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
	"github.com/aabhi25/chronalive/pkg/jobs"
)

type exportJobRegistry interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, failure string) error
	DeleteExpired(ctx context.Context, ttl time.Duration) []string
}

type exportScheduleReader interface {
	EffectiveWeek(ctx context.Context, classID string, weekStart time.Time) (*dto.EffectiveWeekResponse, error)
}

type exportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
}

type exportTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type exportStructureReader interface {
	GetBySchool(ctx context.Context, schoolID string) (*models.TimetableStructure, error)
}

type exportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

type pdfRenderer interface {
	Render(grid export.TimetableGrid) ([]byte, error)
}

// ExportServiceConfig governs the export worker and job retention.
type ExportServiceConfig struct {
	JobTTL          time.Duration
	CleanupInterval time.Duration
	Workers         int
	Retries         int
}

// ExportService renders effective weekly schedules to PDF in the background.
// Jobs move pending to processing to completed or failed, and expire after a
// TTL together with their artefacts.
type ExportService struct {
	registry  exportJobRegistry
	schedules exportScheduleReader
	classes   exportClassReader
	teachers  exportTeacherReader
	structure exportStructureReader
	files     exportFileStore
	signer    downloadSigner
	renderer  pdfRenderer
	audit     auditLogger
	queue     *jobs.Queue
	validator *validator.Validate
	cfg       ExportServiceConfig
	logger    *zap.Logger
}

// NewExportService wires the export pipeline.
func NewExportService(
	registry exportJobRegistry,
	schedules exportScheduleReader,
	classes exportClassReader,
	teachers exportTeacherReader,
	structure exportStructureReader,
	files exportFileStore,
	signer downloadSigner,
	renderer pdfRenderer,
	audit auditLogger,
	validate *validator.Validate,
	cfg ExportServiceConfig,
	logger *zap.Logger,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 6 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := &ExportService{
		registry:  registry,
		schedules: schedules,
		classes:   classes,
		teachers:  teachers,
		structure: structure,
		files:     files,
		signer:    signer,
		renderer:  renderer,
		audit:     audit,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("timetable-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool and the TTL cleanup loop.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Create queues an export job for a class week and returns its id.
func (s *ExportService) Create(ctx context.Context, req dto.CreateExportRequest, schoolID, actorID string) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	weekStart, err := ParseDate(req.WeekStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD")
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

	job := &models.ExportJob{
		ClassID:     class.ID,
		SchoolID:    class.SchoolID,
		WeekStart:   WeekStartOf(weekStart),
		RequestedBy: actorID,
	}
	if err := s.registry.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "timetable_pdf", Payload: job.ID}); err != nil {
		_ = s.registry.UpdateStatus(ctx, job.ID, models.ExportJobStatusFailed, "", "export queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	s.writeAudit(ctx, actorID, class.SchoolID, job.ID,
		fmt.Sprintf("queued timetable export for class %s week %s", class.ID, req.WeekStart))
	return job, nil
}

// Get returns job state; completed jobs carry a signed download URL.
func (s *ExportService) Get(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := s.registry.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status == models.ExportJobStatusCompleted && job.FilePath != "" {
		token, _, signErr := s.signer.Generate(job.ID, job.FilePath)
		if signErr != nil {
			return nil, appErrors.Wrap(signErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		job.DownloadURL = "/api/v1/timetable/exports/download?token=" + token
	}
	return job, nil
}

// OpenDownload validates a signed token and opens the exported file.
func (s *ExportService) OpenDownload(ctx context.Context, token string) (*os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if _, err := s.registry.FindByID(ctx, jobID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export artefact no longer available")
	}
	return file, nil
}

// process renders one export job. Runs on queue workers.
func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("export job payload must be a job id")
	}

	record, err := s.registry.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if err := s.registry.UpdateStatus(ctx, jobID, models.ExportJobStatusProcessing, "", ""); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	data, err := s.render(ctx, record)
	if err != nil {
		if updateErr := s.registry.UpdateStatus(ctx, jobID, models.ExportJobStatusFailed, "", err.Error()); updateErr != nil {
			s.logger.Error("failed to mark export failed", zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return err
	}

	filename := fmt.Sprintf("timetable_%s_%s_%s.pdf", record.ClassID, record.WeekStart.Format("2006-01-02"), jobID)
	if _, err := s.files.Save(filename, data); err != nil {
		if updateErr := s.registry.UpdateStatus(ctx, jobID, models.ExportJobStatusFailed, "", "failed to store artefact"); updateErr != nil {
			s.logger.Error("failed to mark export failed", zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return fmt.Errorf("store export artefact: %w", err)
	}

	if err := s.registry.UpdateStatus(ctx, jobID, models.ExportJobStatusCompleted, filename, ""); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	s.logger.Info("export completed", zap.String("job_id", jobID), zap.String("class_id", record.ClassID))
	return nil
}

func (s *ExportService) render(ctx context.Context, record *models.ExportJob) ([]byte, error) {
	week, err := s.schedules.EffectiveWeek(ctx, record.ClassID, record.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("load effective week: %w", err)
	}
	structure, err := s.structure.GetBySchool(ctx, record.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("load timetable structure: %w", err)
	}
	class, err := s.classes.FindByID(ctx, record.ClassID)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}

	dayNames := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	days := dayNames[:structure.DaysPerWeek]

	periods := make([]string, structure.PeriodsPerDay)
	for i := range periods {
		periods[i] = fmt.Sprintf("Period %d", i+1)
	}

	cells := make([][]*export.TimetableCell, structure.PeriodsPerDay)
	for i := range cells {
		cells[i] = make([]*export.TimetableCell, len(days))
	}

	subjectNames := make(map[string]string)
	teacherNames := make(map[string]string)
	for _, entry := range week.Entries {
		if entry.Day < 1 || entry.Day > len(days) || entry.Period < 1 || entry.Period > structure.PeriodsPerDay {
			continue
		}
		cell := &export.TimetableCell{
			Subject:  s.subjectName(ctx, subjectNames, entry.SubjectID),
			Teacher:  s.teacherName(ctx, teacherNames, entry.TeacherID),
			Modified: entry.IsModified,
		}
		if entry.Room != nil {
			cell.Room = *entry.Room
		}
		cells[entry.Period-1][entry.Day-1] = cell
	}

	grid := export.TimetableGrid{
		Title:   fmt.Sprintf("%s - week of %s", class.Name, week.WeekStart),
		Days:    days,
		Periods: periods,
		Cells:   cells,
	}
	return s.renderer.Render(grid)
}

func (s *ExportService) subjectName(ctx context.Context, cache map[string]string, id string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	subject, err := s.classes.FindSubjectByID(ctx, id)
	if err != nil {
		cache[id] = id
		return id
	}
	cache[id] = subject.Name
	return subject.Name
}

func (s *ExportService) teacherName(ctx context.Context, cache map[string]string, id string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		cache[id] = id
		return id
	}
	cache[id] = teacher.FullName
	return teacher.FullName
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range s.registry.DeleteExpired(ctx, s.cfg.JobTTL) {
				if err := s.files.Delete(path); err != nil {
					s.logger.Warn("failed to delete expired export artefact", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}

func (s *ExportService) writeAudit(ctx context.Context, actorID, schoolID, entityID, description string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		SchoolID:    schoolID,
		Action:      models.AuditActionTimetableExport,
		EntityType:  "export_job",
		Description: description,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if entityID != "" {
		log.EntityID = &entityID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", models.AuditActionTimetableExport), zap.Error(err))
	}
}
