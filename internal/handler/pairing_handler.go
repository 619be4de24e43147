package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type pairingQueueService interface {
	Enqueue(ctx context.Context, req dto.EnqueuePairingRequest) (*models.PairingRequest, error)
	Withdraw(ctx context.Context, id string) error
	SetPriority(ctx context.Context, id string, req dto.UpdatePriorityRequest) (*models.PairingRequest, error)
	Queue(ctx context.Context, role models.ProfileRole) (*dto.QueueSnapshot, error)
}

type pairingWorkflowService interface {
	ResolveQueues(ctx context.Context) (*dto.ResolveQueuesResponse, error)
	ClearQueues(ctx context.Context) (*dto.ClearQueuesResponse, error)
	ResetAllMatches(ctx context.Context, req dto.ResetMatchesRequest) (*dto.ResetMatchesResponse, error)
	ConfirmMatch(ctx context.Context, id string, req dto.ConfirmMatchRequest) (*models.PairingMatch, error)
	RejectMatch(ctx context.Context, id string) (*models.PairingMatch, error)
	ListMatches(ctx context.Context, filter models.PairingMatchFilter) ([]models.PairingMatch, *models.Pagination, error)
}

// PairingHandler exposes the pairing queue and match workflow.
type PairingHandler struct {
	queue    pairingQueueService
	workflow pairingWorkflowService
}

// NewPairingHandler constructs PairingHandler.
func NewPairingHandler(queue pairingQueueService, workflow pairingWorkflowService) *PairingHandler {
	return &PairingHandler{queue: queue, workflow: workflow}
}

// Enqueue godoc
// @Summary Add a profile to the pairing queue
// @Tags Pairing
// @Accept json
// @Produce json
// @Param payload body dto.EnqueuePairingRequest true "Queue request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pairing/requests [post]
func (h *PairingHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueuePairingRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.queue.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Withdraw godoc
// @Summary Withdraw a pending pairing request
// @Tags Pairing
// @Param id path string true "Request ID"
// @Success 204
// @Router /pairing/requests/{id} [delete]
func (h *PairingHandler) Withdraw(c *gin.Context) {
	if err := h.queue.Withdraw(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetPriority godoc
// @Summary Change a pending request's priority
// @Tags Pairing
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdatePriorityRequest true "Priority"
// @Success 200 {object} response.Envelope
// @Router /pairing/requests/{id}/priority [patch]
func (h *PairingHandler) SetPriority(c *gin.Context) {
	var req dto.UpdatePriorityRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.queue.SetPriority(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

// Queue godoc
// @Summary List the pairing queues in serving order
// @Tags Pairing
// @Produce json
// @Param type query string false "TUTOR or STUDENT"
// @Success 200 {object} response.Envelope
// @Router /pairing/queue [get]
func (h *PairingHandler) Queue(c *gin.Context) {
	snapshot, err := h.queue.Queue(c.Request.Context(), models.ProfileRole(queryUpper(c, "type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// Resolve godoc
// @Summary Run one match cycle over both queues
// @Tags Pairing
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "A cycle is already running"
// @Router /pairing/resolve [post]
func (h *PairingHandler) Resolve(c *gin.Context) {
	result, err := h.workflow.ResolveQueues(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Clear godoc
// @Summary Cancel every pending pairing request
// @Tags Pairing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pairing/clear [post]
func (h *PairingHandler) Clear(c *gin.Context) {
	result, err := h.workflow.ClearQueues(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Reset godoc
// @Summary Undo all proposed matches
// @Tags Pairing
// @Accept json
// @Produce json
// @Param payload body dto.ResetMatchesRequest true "Confirmation phrase"
// @Success 200 {object} response.Envelope
// @Router /pairing/reset [post]
func (h *PairingHandler) Reset(c *gin.Context) {
	var req dto.ResetMatchesRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.workflow.ResetAllMatches(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListMatches godoc
// @Summary List pairing matches
// @Tags Pairing
// @Produce json
// @Param status query string false "PENDING, CONFIRMED or REJECTED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pairing/matches [get]
func (h *PairingHandler) ListMatches(c *gin.Context) {
	filter := models.PairingMatchFilter{
		Status:   models.PairingMatchStatus(queryUpper(c, "status")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	matches, pagination, err := h.workflow.ListMatches(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matches, pagination)
}

// ConfirmMatch godoc
// @Summary Confirm a proposed match and activate its enrollment
// @Tags Pairing
// @Accept json
// @Produce json
// @Param id path string true "Match ID"
// @Param payload body dto.ConfirmMatchRequest false "Meeting assignment"
// @Success 200 {object} response.Envelope
// @Router /pairing/matches/{id}/confirm [post]
func (h *PairingHandler) ConfirmMatch(c *gin.Context) {
	var req dto.ConfirmMatchRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	match, err := h.workflow.ConfirmMatch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, match)
}

// RejectMatch godoc
// @Summary Reject a proposed match
// @Tags Pairing
// @Produce json
// @Param id path string true "Match ID"
// @Success 200 {object} response.Envelope
// @Router /pairing/matches/{id}/reject [post]
func (h *PairingHandler) RejectMatch(c *gin.Context) {
	match, err := h.workflow.RejectMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, match)
}
