package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/dto"
	"github.com/campusops/ta-scheduler-api/internal/service"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/response"
)

// Multipart field names for the roster upload.
const (
	rosterFileField       = "roster"
	responsesFileField    = "responses"
	requirementsFileField = "requirements"
)

type rosterManager interface {
	Upload(ctx context.Context, name string, staffFile, responsesFile, requirementsFile io.Reader) (*dto.RosterResponse, error)
	Get(ctx context.Context, id string) (*dto.RosterResponse, error)
	List(ctx context.Context) ([]dto.RosterResponse, error)
	Delete(ctx context.Context, id string) error
}

// RosterHandler exposes roster upload and management endpoints.
type RosterHandler struct {
	service rosterManager
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// Upload godoc
// @Summary Upload a roster bundle
// @Description Accepts the hiring roster, availability survey, and lab requirement CSVs as one multipart upload
// @Tags Rosters
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Roster name"
// @Param roster formData file true "Hiring roster CSV"
// @Param responses formData file true "Availability survey CSV"
// @Param requirements formData file true "Lab requirements CSV"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /rosters [post]
func (h *RosterHandler) Upload(c *gin.Context) {
	staffFile, err := openFormFile(c, rosterFileField)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer staffFile.Close()

	responsesFile, err := openFormFile(c, responsesFileField)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer responsesFile.Close()

	requirementsFile, err := openFormFile(c, requirementsFileField)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer requirementsFile.Close()

	roster, err := h.service.Upload(c.Request.Context(), c.PostForm("name"), staffFile, responsesFile, requirementsFile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, roster)
}

// List godoc
// @Summary List uploaded rosters
// @Tags Rosters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rosters [get]
func (h *RosterHandler) List(c *gin.Context) {
	rosters, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosters, nil)
}

// Get godoc
// @Summary Get one roster summary
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rosters/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	roster, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Delete godoc
// @Summary Delete a roster bundle
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /rosters/{id} [delete]
func (h *RosterHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func openFormFile(c *gin.Context, field string) (multipart.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing upload file "+field)
	}
	f, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload file "+field)
	}
	return f, nil
}
