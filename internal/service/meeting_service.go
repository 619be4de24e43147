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
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// Provider event names accepted by the video webhook.
const (
	VideoEventParticipantJoined = "meeting.participant_joined"
	VideoEventParticipantLeft   = "meeting.participant_left"
)

type meetingStore interface {
	List(ctx context.Context) ([]models.Meeting, error)
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Meeting, error)
	Create(ctx context.Context, meeting *models.Meeting) error
}

type meetingSessionReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.Session, error)
	ListByMeetingBetween(ctx context.Context, exec sqlx.ExtContext, meetingID string, from, to time.Time) ([]models.Session, error)
	FindActiveOnMeeting(ctx context.Context, meetingID string, from, to time.Time) (*models.Session, error)
}

type participantEventRepository interface {
	Create(ctx context.Context, event *models.ParticipantEvent) error
}

// MeetingService manages the shared meeting pool and its presence events.
type MeetingService struct {
	meetings  meetingStore
	sessions  meetingSessionReader
	events    participantEventRepository
	checker   *scheduling.ConflictChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMeetingService constructs a MeetingService. duration is the fixed session length.
func NewMeetingService(meetings meetingStore, sessions meetingSessionReader, events participantEventRepository, duration time.Duration, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		meetings:  meetings,
		sessions:  sessions,
		events:    events,
		checker:   scheduling.NewConflictChecker(duration),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns every meeting in the pool.
func (s *MeetingService) List(ctx context.Context) ([]models.Meeting, error) {
	meetings, err := s.meetings.List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list meetings")
	}
	return meetings, nil
}

// Create adds a meeting link to the pool.
func (s *MeetingService) Create(ctx context.Context, req dto.CreateMeetingRequest) (*models.Meeting, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Link = strings.TrimSpace(req.Link)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	meeting := &models.Meeting{
		Name:       req.Name,
		Link:       req.Link,
		ExternalID: normalizeOptional(req.ExternalID),
	}
	if err := s.meetings.Create(ctx, meeting); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "meeting external id already registered")
		}
		return nil, internalError(err, "failed to create meeting")
	}
	s.logger.Info("meeting created", zap.String("meeting_id", meeting.ID))
	return meeting, nil
}

// CheckAvailability reports whether meetingID is free for a session starting at rawDate.
// excludeID skips one session, typically the one being moved.
func (s *MeetingService) CheckAvailability(ctx context.Context, meetingID, rawDate, excludeID string) (*dto.MeetingAvailabilityResponse, error) {
	candidate, err := scheduling.ParseCandidate(rawDate)
	if err != nil {
		return nil, err
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	duration := s.checker.Duration()
	booked, err := s.sessions.ListByMeetingBetween(ctx, nil, meeting.ID, candidate.Add(-duration), candidate.Add(duration))
	if err != nil {
		return nil, internalError(err, "failed to load meeting bookings")
	}
	conflict, err := s.checker.FindConflict(meeting.ID, candidate, strings.TrimSpace(excludeID), booked)
	if err != nil {
		return nil, err
	}
	resp := &dto.MeetingAvailabilityResponse{MeetingID: meeting.ID, Date: candidate, Available: conflict == nil}
	if conflict != nil {
		id, at := conflict.ID, conflict.Date
		resp.ConflictID = &id
		resp.ConflictAt = &at
	}
	return resp, nil
}

// RecordParticipantJoin stores a join event.
func (s *MeetingService) RecordParticipantJoin(ctx context.Context, req dto.ParticipantEventRequest) (*models.ParticipantEvent, error) {
	return s.record(ctx, models.ParticipantActionJoin, req)
}

// RecordParticipantLeave stores a leave event.
func (s *MeetingService) RecordParticipantLeave(ctx context.Context, req dto.ParticipantEventRequest) (*models.ParticipantEvent, error) {
	return s.record(ctx, models.ParticipantActionLeave, req)
}

// HandleVideoEvent maps a verified provider event onto a participant event.
// Unknown event names are acknowledged and ignored, returning a nil event.
func (s *MeetingService) HandleVideoEvent(ctx context.Context, event dto.VideoWebhookEvent) (*models.ParticipantEvent, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload")
	}
	var action models.ParticipantAction
	switch event.Event {
	case VideoEventParticipantJoined:
		action = models.ParticipantActionJoin
	case VideoEventParticipantLeft:
		action = models.ParticipantActionLeave
	default:
		s.logger.Debug("ignoring video event", zap.String("event", event.Event))
		return nil, nil
	}

	meeting, err := s.meetings.FindByExternalID(ctx, event.Payload.MeetingID)
	if errors.Is(err, sql.ErrNoRows) {
		meeting, err = s.meetings.FindByID(ctx, event.Payload.MeetingID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, internalError(err, "failed to load meeting")
	}
	return s.record(ctx, action, dto.ParticipantEventRequest{
		MeetingID:     meeting.ID,
		ParticipantID: event.Payload.ParticipantID,
		OccurredAt:    event.Payload.Timestamp,
	})
}

func (s *MeetingService) record(ctx context.Context, action models.ParticipantAction, req dto.ParticipantEventRequest) (*models.ParticipantEvent, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.MeetingID = strings.TrimSpace(req.MeetingID)
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant event")
	}
	if req.SessionID == "" && req.MeetingID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sessionId or meetingId is required")
	}
	at := req.OccurredAt
	if at.IsZero() {
		at = s.now().UTC()
	}

	event := &models.ParticipantEvent{ParticipantID: req.ParticipantID, Action: action, OccurredAt: at}
	if req.SessionID != "" {
		session, err := s.sessions.FindByID(ctx, nil, req.SessionID, false)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return nil, internalError(err, "failed to load session")
		}
		if session.MeetingID == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session has no meeting")
		}
		event.SessionID = &session.ID
		event.MeetingID = *session.MeetingID
	} else {
		meeting, err := s.loadMeeting(ctx, req.MeetingID)
		if err != nil {
			return nil, err
		}
		event.MeetingID = meeting.ID
		// Participants may join up to one session length early.
		duration := s.checker.Duration()
		session, err := s.sessions.FindActiveOnMeeting(ctx, meeting.ID, at.Add(-duration), at.Add(duration))
		switch {
		case err == nil:
			event.SessionID = &session.ID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, internalError(err, "failed to resolve session")
		}
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, internalError(err, "failed to record participant event")
	}
	s.logger.Info("participant event recorded",
		zap.String("meeting_id", event.MeetingID),
		zap.String("participant_id", event.ParticipantID),
		zap.String("action", string(action)),
		zap.Bool("matched_session", event.SessionID != nil),
	)
	return event, nil
}

func (s *MeetingService) loadMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting id is required")
	}
	meeting, err := s.meetings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("meeting %s not found", id))
		}
		return nil, internalError(err, "failed to load meeting")
	}
	return meeting, nil
}
