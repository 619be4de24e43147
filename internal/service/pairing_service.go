package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/matching"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const (
	queueCachePrefix  = "pairing:queue"
	queueCachePattern = queueCachePrefix + "*"
)

type pairingRequestRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error
	FindByID(ctx context.Context, id string) (*models.PairingRequest, error)
	HasPending(ctx context.Context, exec sqlx.ExtContext, profileID string, role models.ProfileRole, excludeID string) (bool, error)
	ListPending(ctx context.Context, exec sqlx.ExtContext, role models.ProfileRole, forUpdate bool) ([]models.PairingRequest, error)
	ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.PairingRequest, error)
	UpdatePriority(ctx context.Context, id string, priority int) error
	Withdraw(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.PairingRequestStatus) (int64, error)
	CancelPending(ctx context.Context, exec sqlx.ExtContext) (int64, error)
}

type pairingProfileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.Profile, error)
}

// PairingService manages the persistent pairing queue.
type PairingService struct {
	requests  pairingRequestRepository
	profiles  pairingProfileRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       matching.QueueConfig
	cacheTTL  time.Duration
}

// NewPairingService constructs a PairingService.
func NewPairingService(requests pairingRequestRepository, profiles pairingProfileRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg matching.QueueConfig, cacheTTL time.Duration) *PairingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PairingService{
		requests:  requests,
		profiles:  profiles,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		cacheTTL:  cacheTTL,
	}
}

// Enqueue places a profile in the queue for the requested role.
func (s *PairingService) Enqueue(ctx context.Context, req dto.EnqueuePairingRequest) (*models.PairingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pairing request payload")
	}
	role := models.ProfileRole(req.Type)
	priority, err := s.cfg.ResolvePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, internalError(err, "failed to load profile")
	}
	if profile.Role != role {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("profile is a %s and cannot queue as %s", profile.Role, role))
	}
	if !profile.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "profile is inactive")
	}

	exists, err := s.requests.HasPending(ctx, nil, profile.ID, role, "")
	if err != nil {
		return nil, internalError(err, "failed to check pending requests")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}

	request := &models.PairingRequest{
		ProfileID: profile.ID,
		Type:      role,
		Priority:  priority,
		Status:    models.PairingRequestStatusPending,
	}
	if err := s.requests.Create(ctx, nil, request); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
		}
		return nil, internalError(err, "failed to create pairing request")
	}
	s.invalidateQueue(ctx)
	s.logger.Info("pairing request queued",
		zap.String("request_id", request.ID),
		zap.String("profile_id", request.ProfileID),
		zap.String("type", string(role)),
		zap.Int("priority", priority),
	)
	return request, nil
}

// Withdraw cancels a pending request.
func (s *PairingService) Withdraw(ctx context.Context, id string) error {
	if err := s.requests.Withdraw(ctx, id); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return internalError(err, "failed to withdraw pairing request")
		}
		return s.notPendingError(ctx, id)
	}
	s.invalidateQueue(ctx)
	return nil
}

// SetPriority changes the priority of a pending request in place.
func (s *PairingService) SetPriority(ctx context.Context, id string, req dto.UpdatePriorityRequest) (*models.PairingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid priority payload")
	}
	priority, err := s.cfg.ResolvePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	if err := s.requests.UpdatePriority(ctx, id, priority); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to update priority")
		}
		return nil, s.notPendingError(ctx, id)
	}
	s.invalidateQueue(ctx)

	updated, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to reload pairing request")
	}
	return updated, nil
}

// Queue lists pending requests in serving order. An empty role lists both queues.
func (s *PairingService) Queue(ctx context.Context, role models.ProfileRole) (*dto.QueueSnapshot, error) {
	if role != "" && !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be TUTOR or STUDENT")
	}
	cacheKey := queueCachePrefix + ":" + string(role)
	var cached dto.QueueSnapshot
	if s.cache.Fetch(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	pending, err := s.requests.ListPending(ctx, nil, role, false)
	if err != nil {
		return nil, internalError(err, "failed to list queue")
	}
	queue := matching.NewQueue(s.cfg)
	if err := queue.Seed(pending); err != nil {
		s.logger.Warn("pending requests violate queue uniqueness", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ProfileID)
	}
	profiles, err := s.profiles.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, internalError(err, "failed to load queued profiles")
	}

	snapshot := &dto.QueueSnapshot{Tutors: []dto.QueueEntry{}, Students: []dto.QueueEntry{}}
	if role == "" || role == models.ProfileRoleTutor {
		snapshot.Tutors = queueEntries(queue.Pending(models.ProfileRoleTutor), profiles)
	}
	if role == "" || role == models.ProfileRoleStudent {
		snapshot.Students = queueEntries(queue.Pending(models.ProfileRoleStudent), profiles)
	}
	s.cache.Store(ctx, cacheKey, snapshot, s.cacheTTL)
	return snapshot, nil
}

func (s *PairingService) notPendingError(ctx context.Context, id string) error {
	existing, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
		}
		return internalError(err, "failed to load pairing request")
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("pairing request is %s", existing.Status))
}

func (s *PairingService) invalidateQueue(ctx context.Context) {
	s.cache.Evict(ctx, queueCachePattern)
}

func queueEntries(requests []models.PairingRequest, profiles map[string]models.Profile) []dto.QueueEntry {
	entries := make([]dto.QueueEntry, 0, len(requests))
	for i, req := range requests {
		entries = append(entries, dto.QueueEntry{
			PairingRequest: req,
			Position:       i + 1,
			ProfileName:    profiles[req.ProfileID].FullName,
		})
	}
	return entries
}
