package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	"github.com/aabhi25/chronalive/internal/service"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
	"github.com/aabhi25/chronalive/pkg/response"
)

type baselineOperator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, schoolID, actorID string) (*dto.GenerateTimetableResult, error)
	Refresh(ctx context.Context, req dto.GenerateTimetableRequest, schoolID, actorID string) (*dto.GenerateTimetableResult, error)
	Validate(ctx context.Context, schoolID string) (*models.TimetableValidation, error)
}

type effectiveScheduleReader interface {
	EffectiveWeek(ctx context.Context, classID string, weekStart time.Time) (*dto.EffectiveWeekResponse, error)
	EffectiveDay(ctx context.Context, classID string, date time.Time) (*dto.EffectiveDayResponse, error)
}

type weeklyEditor interface {
	UpdateWeeklyEntry(ctx context.Context, req dto.UpdateWeeklyEntryRequest, actorID string) (int, error)
	PromoteWeekToGlobal(ctx context.Context, req dto.WeekRequest, actorID string) (*dto.GenerateTimetableResult, error)
	ResetWeekFromGlobal(ctx context.Context, req dto.WeekRequest, actorID string) (*dto.GenerateTimetableResult, error)
}

// TimetableHandler serves baseline generation, effective views and weekly edits.
type TimetableHandler struct {
	baseline baselineOperator
	schedule effectiveScheduleReader
	weekly   weeklyEditor
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(baseline baselineOperator, schedule effectiveScheduleReader, weekly weeklyEditor) *TimetableHandler {
	return &TimetableHandler{baseline: baseline, schedule: schedule, weekly: weekly}
}

// Generate godoc
// @Summary Generate the baseline timetable for a class
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	result, err := h.baseline.Generate(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Refresh godoc
// @Summary Regenerate the baseline while preserving past weekly layers
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/refresh [post]
func (h *TimetableHandler) Refresh(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	result, err := h.baseline.Refresh(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Report scheduling conflicts across the school baseline
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [get]
func (h *TimetableHandler) Validate(c *gin.Context) {
	_, schoolID := actorFromContext(c)
	result, err := h.baseline.Validate(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Effective godoc
// @Summary Serve the merged effective schedule for a class week or date
// @Tags Timetable
// @Produce json
// @Param classId query string true "Class ID"
// @Param weekStart query string false "Week start (YYYY-MM-DD)"
// @Param date query string false "Calendar date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /timetable/effective [get]
func (h *TimetableHandler) Effective(c *gin.Context) {
	var query dto.EffectiveScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if query.ClassID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId is required"))
		return
	}

	if query.Date != "" {
		date, err := service.ParseDate(query.Date)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		result, err := h.schedule.EffectiveDay(c.Request.Context(), query.ClassID, date)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
		return
	}

	weekStart := service.WeekStartOf(time.Now().UTC())
	if query.WeekStart != "" {
		parsed, err := service.ParseDate(query.WeekStart)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD"))
			return
		}
		weekStart = service.WeekStartOf(parsed)
	}
	result, err := h.schedule.EffectiveWeek(c.Request.Context(), query.ClassID, weekStart)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateWeeklyEntry godoc
// @Summary Apply a manual override edit to one weekly timetable cell
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.UpdateWeeklyEntryRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/weekly/entry [put]
func (h *TimetableHandler) UpdateWeeklyEntry(c *gin.Context) {
	var req dto.UpdateWeeklyEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, _ := actorFromContext(c)
	version, err := h.weekly.UpdateWeeklyEntry(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"version": version}, nil)
}

// Promote godoc
// @Summary Promote a weekly override layer into the global baseline
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.WeekRequest true "Week payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/promote [post]
func (h *TimetableHandler) Promote(c *gin.Context) {
	var req dto.WeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, _ := actorFromContext(c)
	result, err := h.weekly.PromoteWeekToGlobal(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Discard a week's overrides and re-materialize from the baseline
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.WeekRequest true "Week payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/reset [post]
func (h *TimetableHandler) Reset(c *gin.Context) {
	var req dto.WeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, _ := actorFromContext(c)
	result, err := h.weekly.ResetWeekFromGlobal(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
