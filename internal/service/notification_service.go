package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByProfile(ctx context.Context, profileID string, limit int) ([]models.Notification, error)
}

const notificationJobType = "notification.deliver"

// NotificationService delivers in-app notifications through a background queue.
// When the queue is not running notifications are written inline.
type NotificationService struct {
	repo    notificationRepository
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue
}

// NewNotificationService wires the delivery queue around the repository.
func NewNotificationService(repo notificationRepository, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, metrics: metrics, logger: logger}
	cfg.Logger = logger
	cfg.OnDrop = func(job jobs.Job, err error) {
		svc.metrics.RecordNotification("dropped")
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify schedules a notification for a profile. Failures are logged, never returned,
// so callers can notify after their transaction has committed.
func (s *NotificationService) Notify(ctx context.Context, profileID string, kind models.NotificationType, payload interface{}) {
	if s == nil || profileID == "" {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode notification payload", zap.String("type", string(kind)), zap.Error(err))
		return
	}
	notification := &models.Notification{ID: uuid.NewString(), ProfileID: profileID, Type: kind, Payload: raw}

	if s.queue.Running() {
		if err := s.queue.Enqueue(jobs.Job{ID: notification.ID, Type: notificationJobType, Payload: notification}); err == nil {
			s.metrics.RecordNotification("queued")
			return
		}
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to store notification", zap.String("profile_id", profileID), zap.Error(err))
		s.metrics.RecordNotification("failed")
		return
	}
	s.metrics.RecordNotification("delivered")
}

// List returns the latest notifications for a profile.
func (s *NotificationService) List(ctx context.Context, profileID string, limit int) ([]models.Notification, error) {
	items, err := s.repo.ListByProfile(ctx, profileID, limit)
	if err != nil {
		return nil, internalError(err, "failed to list notifications")
	}
	return items, nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	s.metrics.RecordNotification("delivered")
	return nil
}
