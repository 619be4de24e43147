package handler

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/webhook"
)

type videoEventStub struct {
	received []dto.VideoWebhookEvent
}

func (s *videoEventStub) HandleVideoEvent(ctx context.Context, event dto.VideoWebhookEvent) (*models.ParticipantEvent, error) {
	s.received = append(s.received, event)
	return &models.ParticipantEvent{ID: "evt-1"}, nil
}

func TestWebhookHandlerVerifiesSignature(t *testing.T) {
	verifier := webhook.NewVerifier("hook-secret", time.Minute)
	events := &videoEventStub{}
	h := NewWebhookHandler(verifier, events, nil)
	body := []byte(`{"event":"meeting.participant_joined","payload":{"meeting_id":"zoom-1","participant_id":"p-1"}}`)
	now := time.Now()

	c, w := newGinContext(http.MethodPost, "/webhooks/video", body)
	c.Request.Header.Set(webhook.SignatureHeader, verifier.Sign(now, body))
	c.Request.Header.Set(webhook.TimestampHeader, strconv.FormatInt(now.Unix(), 10))
	h.Video(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, events.received, 1)
	assert.Equal(t, "zoom-1", events.received[0].Payload.MeetingID)

	c, w = newGinContext(http.MethodPost, "/webhooks/video", body)
	c.Request.Header.Set(webhook.SignatureHeader, "v0=deadbeef")
	c.Request.Header.Set(webhook.TimestampHeader, strconv.FormatInt(now.Unix(), 10))
	h.Video(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, events.received, 1)
}

func TestWebhookHandlerRejectsMalformedJSON(t *testing.T) {
	verifier := webhook.NewVerifier("hook-secret", time.Minute)
	h := NewWebhookHandler(verifier, &videoEventStub{}, nil)
	body := []byte(`not json`)
	now := time.Now()

	c, w := newGinContext(http.MethodPost, "/webhooks/video", body)
	c.Request.Header.Set(webhook.SignatureHeader, verifier.Sign(now, body))
	c.Request.Header.Set(webhook.TimestampHeader, strconv.FormatInt(now.Unix(), 10))
	h.Video(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
