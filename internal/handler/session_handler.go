package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type sessionService interface {
	MaterializeWeek(ctx context.Context, req dto.MaterializeSessionsRequest) (*dto.MaterializeSessionsResponse, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleSessionRequest) (*models.Session, error)
	Complete(ctx context.Context, id string, req dto.CompleteSessionRequest) (*models.Session, error)
	Cancel(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error)
	Export(ctx context.Context, query dto.SessionQuery) (*service.ExportResult, error)
}

// SessionHandler exposes concrete tutoring sessions.
type SessionHandler struct {
	sessions sessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Materialize godoc
// @Summary Create sessions for a week from active enrollments
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.MaterializeSessionsRequest true "Week range"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Meeting conflict"
// @Router /sessions/materialize [post]
func (h *SessionHandler) Materialize(c *gin.Context) {
	var req dto.MaterializeSessionsRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.sessions.MaterializeWeek(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param enrollment_id query string false "Enrollment"
// @Param tutor_id query string false "Tutor"
// @Param student_id query string false "Student"
// @Param meeting_id query string false "Meeting"
// @Param status query string false "ACTIVE, COMPLETE or CANCELLED"
// @Param from query string false "From date (YYYY-MM-DD or RFC3339)"
// @Param to query string false "To date, inclusive"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	query, ok := bindSessionQuery(c)
	if !ok {
		return
	}
	sessions, pagination, err := h.sessions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Export godoc
// @Summary Download a session roster
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param from query string false "From date"
// @Param to query string false "To date, inclusive"
// @Success 200 {file} file
// @Router /sessions/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	query, ok := bindSessionQuery(c)
	if !ok {
		return
	}
	result, err := h.sessions.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.Format.ContentType(), result.Content)
}

// Reschedule godoc
// @Summary Move a session, optionally to another meeting
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RescheduleSessionRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Meeting conflict"
// @Router /sessions/{id}/reschedule [put]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Complete godoc
// @Summary Complete a session with the exit form
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CompleteSessionRequest true "Exit form"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	var req dto.CompleteSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	session, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

func bindSessionQuery(c *gin.Context) (dto.SessionQuery, bool) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return query, false
	}
	return query, true
}
