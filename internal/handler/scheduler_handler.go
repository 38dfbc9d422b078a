package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/dto"
	"github.com/campusops/ta-scheduler-api/internal/middleware"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

type runManager interface {
	Start(ctx context.Context, req dto.StartRunRequest) (*dto.RunResponse, error)
	Get(ctx context.Context, id string) (*dto.RunResponse, error)
	Progress(ctx context.Context, id string) (*dto.RunProgressResponse, error)
	Cancel(ctx context.Context, id string) (*dto.RunResponse, error)
	Report(ctx context.Context, id string) (*models.AssignmentReport, error)
	List(ctx context.Context, query dto.RunQuery) ([]dto.RunResponse, error)
}

// SchedulerHandler exposes the run lifecycle endpoints.
type SchedulerHandler struct {
	service runManager
	logger  *zap.Logger
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(svc *service.SchedulerService, logger *zap.Logger) *SchedulerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerHandler{service: svc, logger: logger}
}

// Start godoc
// @Summary Start a scheduling run
// @Description Launches the assignment search for a stored roster and returns immediately with the run in SEARCHING state
// @Tags Runs
// @Accept json
// @Produce json
// @Param payload body dto.StartRunRequest true "Run payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /runs [post]
func (h *SchedulerHandler) Start(c *gin.Context) {
	var req dto.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}

	run, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, run)
}

// List godoc
// @Summary List scheduling runs
// @Tags Runs
// @Produce json
// @Param rosterId query string false "Filter by roster"
// @Param status query string false "Filter by run status"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *SchedulerHandler) List(c *gin.Context) {
	query := dto.RunQuery{
		RosterID: c.Query("rosterId"),
		Status:   c.Query("status"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}

	runs, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, &models.Pagination{
		Page:     query.Page,
		PageSize: query.PageSize,
	})
}

// Get godoc
// @Summary Get one run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *SchedulerHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Progress godoc
// @Summary Poll the latest incumbent of a run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /runs/{id}/progress [get]
func (h *SchedulerHandler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Report godoc
// @Summary Get the terminal assignment report of a run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /runs/{id}/report [get]
func (h *SchedulerHandler) Report(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Cancel godoc
// @Summary Cancel a live run
// @Description Requests a cooperative stop; the best incumbent found so far is kept
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /runs/{id}/cancel [post]
func (h *SchedulerHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	run, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	username := currentUsername(c)
	h.logger.Info("run cancelled", zap.String("run_id", id), zap.String("by", username))
	middleware.SetMeta(c, "cancelled_by", username)

	response.JSON(c, http.StatusOK, run, nil, middleware.ExtractMeta(c))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
