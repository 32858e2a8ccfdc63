package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/aabhi25/chronalive/internal/dto"
	"github.com/aabhi25/chronalive/internal/models"
	appErrors "github.com/aabhi25/chronalive/pkg/errors"
	"github.com/aabhi25/chronalive/pkg/response"
)

type exportOperator interface {
	Create(ctx context.Context, req dto.CreateExportRequest, schoolID, actorID string) (*models.ExportJob, error)
	Get(ctx context.Context, jobID string) (*models.ExportJob, error)
	OpenDownload(ctx context.Context, token string) (*os.File, error)
}

// ExportHandler manages asynchronous timetable export endpoints.
type ExportHandler struct {
	service exportOperator
}

// NewExportHandler constructs handler.
func NewExportHandler(svc exportOperator) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Create godoc
// @Summary Queue a PDF export of a class's effective weekly schedule
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.CreateExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /timetable/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID, schoolID := actorFromContext(c)
	job, err := h.service.Create(c.Request.Context(), req, schoolID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dto.CreateExportResponse{JobID: job.ID}, nil)
}

// Get godoc
// @Summary Report export job status, with a signed download URL when completed
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Stream a completed export artifact via its signed token
// @Tags Exports
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /timetable/exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, err := h.service.OpenDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(file.Name())+`"`)
	c.Header("Content-Type", "application/pdf")
	c.File(file.Name())
}
