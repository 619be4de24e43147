package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
)

type notificationRepoStub struct {
	mu        sync.Mutex
	created   []models.Notification
	createErr error
	listed    []models.Notification
	delivered chan struct{}
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	s.created = append(s.created, *n)
	s.mu.Unlock()
	if s.delivered != nil {
		s.delivered <- struct{}{}
	}
	return nil
}

func (s *notificationRepoStub) ListByProfile(ctx context.Context, profileID string, limit int) ([]models.Notification, error) {
	return s.listed, nil
}

func (s *notificationRepoStub) snapshot() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.created...)
}

func TestNotificationServiceInlineWhenQueueStopped(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, nil, nil, jobs.QueueConfig{})

	svc.Notify(context.Background(), "profile-1", models.NotificationTypeQueueCleared, map[string]string{"request_id": "req-1"})

	created := repo.snapshot()
	require.Len(t, created, 1)
	assert.Equal(t, "profile-1", created[0].ProfileID)
	assert.Equal(t, models.NotificationTypeQueueCleared, created[0].Type)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(created[0].Payload, &payload))
	assert.Equal(t, "req-1", payload["request_id"])
}

func TestNotificationServiceQueued(t *testing.T) {
	repo := &notificationRepoStub{delivered: make(chan struct{}, 1)}
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, metrics, nil, jobs.QueueConfig{Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), "profile-2", models.NotificationTypeMatchProposed, map[string]string{"match_id": "m-1"})

	select {
	case <-repo.delivered:
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
	assert.Len(t, repo.snapshot(), 1)
}

func TestNotificationServiceSwallowsErrors(t *testing.T) {
	repo := &notificationRepoStub{createErr: errors.New("db down")}
	svc := NewNotificationService(repo, nil, nil, jobs.QueueConfig{})

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), "profile-1", models.NotificationTypeMatchConfirmed, nil)
	})
	svc.Notify(context.Background(), "", models.NotificationTypeMatchConfirmed, nil)
	assert.Empty(t, repo.snapshot())
}
