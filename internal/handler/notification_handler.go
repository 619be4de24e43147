package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type notificationLister interface {
	List(ctx context.Context, profileID string, limit int) ([]models.Notification, error)
}

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	notifications notificationLister
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications notificationLister) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Mine godoc
// @Summary List the caller's notifications, newest first
// @Tags Notifications
// @Produce json
// @Param limit query int false "Maximum items"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.notifications.List(c.Request.Context(), claims.Subject(), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
