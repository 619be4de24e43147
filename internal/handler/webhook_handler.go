package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
	"github.com/noah-isme/tutorhub-api/pkg/webhook"
)

const maxWebhookBody = 1 << 20

type signatureVerifier interface {
	Verify(signature, timestamp string, body []byte) error
}

type videoEventHandler interface {
	HandleVideoEvent(ctx context.Context, event dto.VideoWebhookEvent) (*models.ParticipantEvent, error)
}

// WebhookHandler receives video provider callbacks.
type WebhookHandler struct {
	verifier signatureVerifier
	meetings videoEventHandler
	logger   *zap.Logger
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(verifier signatureVerifier, meetings videoEventHandler, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{verifier: verifier, meetings: meetings, logger: logger}
}

// Video godoc
// @Summary Receive participant join/leave events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Video-Signature header string true "v0=<hex hmac>"
// @Param X-Video-Request-Timestamp header string true "Unix seconds"
// @Success 202 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/video [post]
func (h *WebhookHandler) Video(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}
	if err := h.verifier.Verify(c.GetHeader(webhook.SignatureHeader), c.GetHeader(webhook.TimestampHeader), body); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err), zap.String("ip", c.ClientIP()))
		response.Error(c, err)
		return
	}

	var event dto.VideoWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recorded, err := h.meetings.HandleVideoEvent(c.Request.Context(), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"event": event.Event, "recorded": recorded != nil})
}
