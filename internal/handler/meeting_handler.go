package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type meetingService interface {
	List(ctx context.Context) ([]models.Meeting, error)
	Create(ctx context.Context, req dto.CreateMeetingRequest) (*models.Meeting, error)
	CheckAvailability(ctx context.Context, meetingID, rawDate, excludeID string) (*dto.MeetingAvailabilityResponse, error)
}

// MeetingHandler exposes the meeting pool.
type MeetingHandler struct {
	meetings meetingService
}

// NewMeetingHandler constructs MeetingHandler.
func NewMeetingHandler(meetings meetingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings}
}

// List godoc
// @Summary List meetings
// @Tags Meetings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	meetings, err := h.meetings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, meetings)
}

// Create godoc
// @Summary Add a meeting link to the pool
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body dto.CreateMeetingRequest true "Meeting"
// @Success 201 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req dto.CreateMeetingRequest
	if !bindJSON(c, &req) {
		return
	}
	meeting, err := h.meetings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// Availability godoc
// @Summary Check whether a meeting is free for a session slot
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Param date query string true "Session start (RFC3339)"
// @Param excludeSessionId query string false "Session to ignore"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/availability [get]
func (h *MeetingHandler) Availability(c *gin.Context) {
	result, err := h.meetings.CheckAvailability(c.Request.Context(), c.Param("id"), c.Query("date"), c.Query("excludeSessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
