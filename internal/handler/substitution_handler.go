package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
	"github.com/aabhi25/chronalive/pkg/response"
)

type substitutionOperator interface {
	FindSubstitutes(ctx context.Context, req dto.FindSubstitutesRequest, schoolID string) ([]dto.SubstituteCandidate, error)
	AutoAssign(ctx context.Context, req dto.AutoAssignRequest, schoolID, actorID string) (*models.Substitution, error)
	Approve(ctx context.Context, substitutionID, actorID string) (*models.Substitution, error)
	Reject(ctx context.Context, substitutionID, actorID string) (*models.Substitution, error)
	PermanentReplace(ctx context.Context, req dto.PermanentReplaceRequest, schoolID, actorID string) (*dto.PermanentReplaceResult, error)
	MarkAbsent(ctx context.Context, req dto.MarkAbsentRequest, schoolID, actorID string) (*dto.AbsenceImpact, error)
	List(ctx context.Context, query dto.SubstitutionQuery, schoolID string) ([]models.Substitution, error)
}

// SubstitutionHandler manages the substitution workflow endpoints.
type SubstitutionHandler struct {
	service substitutionOperator
}

// NewSubstitutionHandler constructs handler.
func NewSubstitutionHandler(svc substitutionOperator) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc}
}

// List godoc
// @Summary List substitutions
// @Tags Substitutions
// @Produce json
// @Param status query string false "Filter by status"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions [get]
func (h *SubstitutionHandler) List(c *gin.Context) {
	var query dto.SubstitutionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	_, schoolID := actorFromContext(c)
	subs, err := h.service.List(c.Request.Context(), query, schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// Find godoc
// @Summary Rank substitute candidates for an entry on a date
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.FindSubstitutesRequest true "Lookup payload"
// @Success 200 {object} response.Envelope
// @Router /substitutions/find [post]
func (h *SubstitutionHandler) Find(c *gin.Context) {
	var req dto.FindSubstitutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	_, schoolID := actorFromContext(c)
	candidates, err := h.service.FindSubstitutes(c.Request.Context(), req, schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// AutoAssign godoc
// @Summary Automatically assign the best available substitute
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.AutoAssignRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /substitutions/auto-assign [post]
func (h *SubstitutionHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	sub, err := h.service.AutoAssign(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Approve godoc
// @Summary Approve a pending or auto-assigned substitution
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id}/approve [post]
func (h *SubstitutionHandler) Approve(c *gin.Context) {
	actorID, _ := actorFromContext(c)
	sub, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Reject godoc
// @Summary Reject a pending or auto-assigned substitution
// @Tags Substitutions
// @Produce json
// @Param id path string true "Substitution ID"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{id}/reject [post]
func (h *SubstitutionHandler) Reject(c *gin.Context) {
	actorID, _ := actorFromContext(c)
	sub, err := h.service.Reject(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Replace godoc
// @Summary Permanently replace a teacher across baseline and upcoming weeks
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.PermanentReplaceRequest true "Replacement payload"
// @Success 200 {object} response.Envelope
// @Router /substitutions/replace [post]
func (h *SubstitutionHandler) Replace(c *gin.Context) {
	var req dto.PermanentReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	result, err := h.service.PermanentReplace(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkAbsent godoc
// @Summary Record a teacher absence and report its timetable impact
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.MarkAbsentRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Router /absences [post]
func (h *SubstitutionHandler) MarkAbsent(c *gin.Context) {
	var req dto.MarkAbsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	impact, err := h.service.MarkAbsent(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, impact)
}
