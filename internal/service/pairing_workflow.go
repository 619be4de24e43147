package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/matching"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type pairingMatchRepository interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, matches []models.PairingMatch) error
	List(ctx context.Context, filter models.PairingMatchFilter) ([]models.PairingMatch, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.PairingMatch, error)
	ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.PairingMatch, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PairingMatchStatus) error
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error)
}

type candidateEnrollmentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, meetingID *string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.EnrollmentStatus) (int64, error)
}

type meetingLookup interface {
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
}

type notifier interface {
	Notify(ctx context.Context, profileID string, kind models.NotificationType, payload interface{})
}

// PairingWorkflowConfig carries the admin workflow settings.
type PairingWorkflowConfig struct {
	Queue             matching.QueueConfig
	LockKey           string
	ResetConfirmation string
}

// PairingWorkflowDeps bundles the workflow collaborators.
type PairingWorkflowDeps struct {
	DB          txProvider
	Locker      advisoryLocker
	Requests    pairingRequestRepository
	Matches     pairingMatchRepository
	Enrollments candidateEnrollmentRepository
	Profiles    pairingProfileRepository
	Meetings    meetingLookup
	Notifier    notifier
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// PairingWorkflow runs match cycles and the administrative queue operations.
// Every mutating operation holds the pairing advisory lock for its transaction,
// so at most one cycle, clear or reset runs at a time.
type PairingWorkflow struct {
	db          txProvider
	locker      advisoryLocker
	requests    pairingRequestRepository
	matches     pairingMatchRepository
	enrollments candidateEnrollmentRepository
	profiles    pairingProfileRepository
	meetings    meetingLookup
	notifier    notifier
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	engine      *matching.Engine
	cfg         PairingWorkflowConfig
}

// NewPairingWorkflow constructs the workflow.
func NewPairingWorkflow(deps PairingWorkflowDeps, cfg PairingWorkflowConfig) *PairingWorkflow {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "pairing_queue"
	}
	return &PairingWorkflow{
		db:          deps.DB,
		locker:      deps.Locker,
		requests:    deps.Requests,
		matches:     deps.Matches,
		enrollments: deps.Enrollments,
		profiles:    deps.Profiles,
		meetings:    deps.Meetings,
		notifier:    deps.Notifier,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		engine:      matching.NewEngine(deps.Logger),
		cfg:         cfg,
	}
}

// ResolveQueues runs one match cycle over every pending request. Matched
// requests become ACCEPTED and each match gets a PENDING candidate enrollment.
func (w *PairingWorkflow) ResolveQueues(ctx context.Context) (*dto.ResolveQueuesResponse, error) {
	started := time.Now()
	response := &dto.ResolveQueuesResponse{Matches: []dto.ProposedMatch{}}

	err := withTx(ctx, w.db, func(tx *sqlx.Tx) error {
		if err := w.lock(ctx, tx); err != nil {
			return err
		}
		pending, err := w.requests.ListPending(ctx, tx, "", true)
		if err != nil {
			return internalError(err, "failed to load pending requests")
		}
		queue := matching.NewQueue(w.cfg.Queue)
		if err := queue.Seed(pending); err != nil {
			return err
		}
		profiles, err := w.profiles.ListByIDs(ctx, tx, profileIDs(pending))
		if err != nil {
			return internalError(err, "failed to load profiles")
		}

		result := w.engine.RunMatchCycle(queue, queue, profiles)
		if len(result.Matches) > 0 {
			records := make([]models.PairingMatch, 0, len(result.Matches))
			accepted := make([]string, 0, len(result.Matches)*2)
			for _, m := range result.Matches {
				enrollment := &models.Enrollment{
					TutorID:      m.Tutor.ProfileID,
					StudentID:    m.Student.ProfileID,
					Summary:      candidateSummary(m.SharedSubjects),
					Availability: m.AvailabilityModels(),
					Status:       models.EnrollmentStatusPending,
				}
				if err := w.enrollments.Create(ctx, tx, enrollment); err != nil {
					return internalError(err, "failed to create candidate enrollment")
				}
				enrollmentID := enrollment.ID
				records = append(records, models.PairingMatch{
					TutorRequestID:   m.Tutor.ID,
					StudentRequestID: m.Student.ID,
					TutorID:          m.Tutor.ProfileID,
					StudentID:        m.Student.ProfileID,
					EnrollmentID:     &enrollmentID,
					Score:            m.Score,
					SharedSubjects:   m.SharedSubjects,
					SharedLanguages:  m.SharedLanguages,
					Status:           models.PairingMatchStatusPending,
				})
				accepted = append(accepted, m.Tutor.ID, m.Student.ID)
			}
			if _, err := w.requests.UpdateStatus(ctx, tx, accepted, models.PairingRequestStatusAccepted); err != nil {
				return internalError(err, "failed to accept matched requests")
			}
			if err := w.matches.CreateBatch(ctx, tx, records); err != nil {
				return internalError(err, "failed to record matches")
			}
			for i, record := range records {
				response.Matches = append(response.Matches, dto.ProposedMatch{
					MatchID:         record.ID,
					EnrollmentID:    *record.EnrollmentID,
					TutorID:         record.TutorID,
					StudentID:       record.StudentID,
					Score:           record.Score,
					SharedSubjects:  record.SharedSubjects,
					SharedLanguages: record.SharedLanguages,
					Availability:    result.Matches[i].AvailabilityModels(),
				})
			}
		}
		response.UnmatchedTutors = queue.Len(models.ProfileRoleTutor)
		response.WaitingStudents = queue.Len(models.ProfileRoleStudent)
		return nil
	})
	if err != nil {
		w.recordCycleFailure(err)
		return nil, err
	}

	w.metrics.RecordMatchCycle(CycleOutcomeCompleted, len(response.Matches), time.Since(started))
	w.metrics.SetQueueDepth(models.ProfileRoleTutor, response.UnmatchedTutors)
	w.metrics.SetQueueDepth(models.ProfileRoleStudent, response.WaitingStudents)
	w.invalidateQueue(ctx)
	for _, m := range response.Matches {
		w.notifyPair(ctx, m.TutorID, m.StudentID, models.NotificationTypeMatchProposed, map[string]interface{}{
			"matchId":      m.MatchID,
			"enrollmentId": m.EnrollmentID,
			"score":        m.Score,
		})
	}
	w.logger.Info("match cycle completed",
		zap.Int("matches", len(response.Matches)),
		zap.Int("unmatched_tutors", response.UnmatchedTutors),
		zap.Int("waiting_students", response.WaitingStudents),
		zap.Duration("duration", time.Since(started)),
	)
	return response, nil
}

// ClearQueues cancels every pending request.
func (w *PairingWorkflow) ClearQueues(ctx context.Context) (*dto.ClearQueuesResponse, error) {
	var (
		cancelled []models.PairingRequest
		count     int64
	)
	err := withTx(ctx, w.db, func(tx *sqlx.Tx) error {
		if err := w.lock(ctx, tx); err != nil {
			return err
		}
		pending, err := w.requests.ListPending(ctx, tx, "", true)
		if err != nil {
			return internalError(err, "failed to load pending requests")
		}
		count, err = w.requests.CancelPending(ctx, tx)
		if err != nil {
			return internalError(err, "failed to cancel pending requests")
		}
		cancelled = pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.invalidateQueue(ctx)
	w.metrics.SetQueueDepth(models.ProfileRoleTutor, 0)
	w.metrics.SetQueueDepth(models.ProfileRoleStudent, 0)
	for _, req := range cancelled {
		w.notify(ctx, req.ProfileID, models.NotificationTypeQueueCleared, map[string]interface{}{
			"requestId": req.ID,
			"type":      req.Type,
		})
	}
	w.logger.Info("pairing queues cleared", zap.Int64("cancelled", count))
	return &dto.ClearQueuesResponse{Cancelled: count}, nil
}

// ResetAllMatches undoes proposals that were not confirmed yet. It deletes every
// match record, drops the PENDING candidate enrollments and reopens the
// requests of unconfirmed matches. A reopened request is cancelled instead when
// its profile already waits in the queue for the same role.
func (w *PairingWorkflow) ResetAllMatches(ctx context.Context, req dto.ResetMatchesRequest) (*dto.ResetMatchesResponse, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if req.Confirmation != w.cfg.ResetConfirmation {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("confirmation must be %q", w.cfg.ResetConfirmation))
	}

	response := &dto.ResetMatchesResponse{}
	err := withTx(ctx, w.db, func(tx *sqlx.Tx) error {
		if err := w.lock(ctx, tx); err != nil {
			return err
		}
		all, err := w.matches.ListAll(ctx, tx)
		if err != nil {
			return internalError(err, "failed to load matches")
		}

		var enrollmentIDs, requestIDs []string
		for _, m := range all {
			if m.Status != models.PairingMatchStatusPending {
				continue
			}
			if m.EnrollmentID != nil {
				enrollmentIDs = append(enrollmentIDs, *m.EnrollmentID)
			}
			requestIDs = append(requestIDs, m.TutorRequestID, m.StudentRequestID)
		}

		response.EnrollmentsDeleted, err = w.enrollments.DeleteByIDs(ctx, tx, enrollmentIDs, models.EnrollmentStatusPending)
		if err != nil {
			return internalError(err, "failed to delete candidate enrollments")
		}

		requests, err := w.requests.ListByIDs(ctx, tx, requestIDs)
		if err != nil {
			return internalError(err, "failed to load matched requests")
		}
		reopen, cancel, err := w.partitionReopen(ctx, tx, requests)
		if err != nil {
			return err
		}
		if response.RequestsReopened, err = w.requests.UpdateStatus(ctx, tx, reopen, models.PairingRequestStatusPending); err != nil {
			return internalError(err, "failed to reopen requests")
		}
		if response.RequestsCancelled, err = w.requests.UpdateStatus(ctx, tx, cancel, models.PairingRequestStatusCancelled); err != nil {
			return internalError(err, "failed to cancel superseded requests")
		}

		response.MatchesDeleted, err = w.matches.DeleteAll(ctx, tx)
		if err != nil {
			return internalError(err, "failed to delete matches")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.invalidateQueue(ctx)
	w.logger.Warn("pairing matches reset",
		zap.Int64("matches_deleted", response.MatchesDeleted),
		zap.Int64("enrollments_deleted", response.EnrollmentsDeleted),
		zap.Int64("requests_reopened", response.RequestsReopened),
		zap.Int64("requests_cancelled", response.RequestsCancelled),
	)
	return response, nil
}

// ConfirmMatch activates the candidate enrollment of a proposed match.
func (w *PairingWorkflow) ConfirmMatch(ctx context.Context, id string, req dto.ConfirmMatchRequest) (*models.PairingMatch, error) {
	meetingID := normalizeOptional(req.MeetingID)
	if meetingID != nil {
		if _, err := w.meetings.FindByID(ctx, *meetingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
			}
			return nil, internalError(err, "failed to load meeting")
		}
	}

	var match *models.PairingMatch
	err := withTx(ctx, w.db, func(tx *sqlx.Tx) error {
		var err error
		match, err = w.loadPendingMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if match.EnrollmentID == nil {
			return appErrors.Clone(appErrors.ErrConflict, "match has no candidate enrollment")
		}
		if err := w.enrollments.UpdateStatus(ctx, tx, *match.EnrollmentID, models.EnrollmentStatusActive, meetingID); err != nil {
			return internalError(err, "failed to activate enrollment")
		}
		if err := w.matches.UpdateStatus(ctx, tx, match.ID, models.PairingMatchStatusConfirmed); err != nil {
			return internalError(err, "failed to confirm match")
		}
		match.Status = models.PairingMatchStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.notifyPair(ctx, match.TutorID, match.StudentID, models.NotificationTypeMatchConfirmed, map[string]interface{}{
		"matchId":      match.ID,
		"enrollmentId": *match.EnrollmentID,
	})
	return match, nil
}

// RejectMatch discards a proposed match and its candidate enrollment.
func (w *PairingWorkflow) RejectMatch(ctx context.Context, id string) (*models.PairingMatch, error) {
	var match *models.PairingMatch
	err := withTx(ctx, w.db, func(tx *sqlx.Tx) error {
		var err error
		match, err = w.loadPendingMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if match.EnrollmentID != nil {
			if err := w.enrollments.Delete(ctx, tx, *match.EnrollmentID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return internalError(err, "failed to delete candidate enrollment")
			}
			match.EnrollmentID = nil
		}
		if err := w.matches.UpdateStatus(ctx, tx, match.ID, models.PairingMatchStatusRejected); err != nil {
			return internalError(err, "failed to reject match")
		}
		ids := []string{match.TutorRequestID, match.StudentRequestID}
		if _, err := w.requests.UpdateStatus(ctx, tx, ids, models.PairingRequestStatusRejected); err != nil {
			return internalError(err, "failed to reject matched requests")
		}
		match.Status = models.PairingMatchStatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// ListMatches returns match records, newest first.
func (w *PairingWorkflow) ListMatches(ctx context.Context, filter models.PairingMatchFilter) ([]models.PairingMatch, *models.Pagination, error) {
	matches, total, err := w.matches.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list matches")
	}
	return matches, paginationFor(filter.Page, filter.PageSize, total), nil
}

func (w *PairingWorkflow) lock(ctx context.Context, tx *sqlx.Tx) error {
	acquired, err := w.locker.TryXactLock(ctx, tx, w.cfg.LockKey)
	if err != nil {
		return internalError(err, "failed to acquire pairing lock")
	}
	if !acquired {
		return appErrors.Clone(appErrors.ErrMatchCycleInProgress, "")
	}
	return nil
}

func (w *PairingWorkflow) loadPendingMatch(ctx context.Context, tx *sqlx.Tx, id string) (*models.PairingMatch, error) {
	match, err := w.matches.FindByID(ctx, tx, id, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "match not found")
		}
		return nil, internalError(err, "failed to load match")
	}
	if match.Status != models.PairingMatchStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("match is already %s", match.Status))
	}
	return match, nil
}

func (w *PairingWorkflow) partitionReopen(ctx context.Context, tx *sqlx.Tx, requests []models.PairingRequest) (reopen, cancel []string, err error) {
	claimed := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		if req.Status != models.PairingRequestStatusAccepted {
			continue
		}
		key := string(req.Type) + ":" + req.ProfileID
		if _, taken := claimed[key]; taken {
			cancel = append(cancel, req.ID)
			continue
		}
		exists, err := w.requests.HasPending(ctx, tx, req.ProfileID, req.Type, req.ID)
		if err != nil {
			return nil, nil, internalError(err, "failed to check pending requests")
		}
		if exists {
			cancel = append(cancel, req.ID)
			continue
		}
		claimed[key] = struct{}{}
		reopen = append(reopen, req.ID)
	}
	return reopen, cancel, nil
}

func (w *PairingWorkflow) recordCycleFailure(err error) {
	if appErrors.Is(err, appErrors.ErrMatchCycleInProgress) {
		w.metrics.RecordMatchCycle(CycleOutcomeBusy, 0, 0)
		return
	}
	w.metrics.RecordMatchCycle(CycleOutcomeFailed, 0, 0)
	w.logger.Error("match cycle failed", zap.Error(err))
}

func (w *PairingWorkflow) notifyPair(ctx context.Context, tutorID, studentID string, kind models.NotificationType, payload map[string]interface{}) {
	forTutor := map[string]interface{}{"counterpartId": studentID}
	forStudent := map[string]interface{}{"counterpartId": tutorID}
	for k, v := range payload {
		forTutor[k] = v
		forStudent[k] = v
	}
	w.notify(ctx, tutorID, kind, forTutor)
	w.notify(ctx, studentID, kind, forStudent)
}

func (w *PairingWorkflow) notify(ctx context.Context, profileID string, kind models.NotificationType, payload interface{}) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(ctx, profileID, kind, payload)
}

func (w *PairingWorkflow) invalidateQueue(ctx context.Context) {
	w.cache.Evict(ctx, queueCachePattern)
}

func profileIDs(requests []models.PairingRequest) []string {
	seen := make(map[string]struct{}, len(requests))
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		if _, ok := seen[req.ProfileID]; ok {
			continue
		}
		seen[req.ProfileID] = struct{}{}
		ids = append(ids, req.ProfileID)
	}
	return ids
}

func candidateSummary(subjects []string) string {
	if len(subjects) == 0 {
		return "Tutoring"
	}
	return "Tutoring: " + strings.Join(subjects, ", ")
}
