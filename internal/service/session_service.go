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
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

// maxMaterializeDays bounds a single materialization run.
const maxMaterializeDays = 31

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	Search(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.Session, error)
	ListBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Session, error)
	ListByMeetingBetween(ctx context.Context, exec sqlx.ExtContext, meetingID string, from, to time.Time) ([]models.Session, error)
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time, meetingID *string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus, notes *string) error
}

type activeEnrollmentReader interface {
	ListActiveBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Enrollment, error)
}

type reminderRepository interface {
	Schedule(ctx context.Context, exec sqlx.ExtContext, sessionID string, sendAt time.Time) error
	Cancel(ctx context.Context, exec sqlx.ExtContext, sessionID string) error
}

type meetingDirectory interface {
	List(ctx context.Context) ([]models.Meeting, error)
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
}

type profileDirectory interface {
	ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.Profile, error)
}

// SessionConfig tunes session scheduling.
type SessionConfig struct {
	Duration     time.Duration
	ReminderLead time.Duration
	Location     *time.Location
	LockKey      string
}

// SessionServiceDeps bundles the session service collaborators.
type SessionServiceDeps struct {
	DB          txProvider
	Locker      advisoryLocker
	Sessions    sessionRepository
	Enrollments activeEnrollmentReader
	Reminders   reminderRepository
	Meetings    meetingDirectory
	Profiles    profileDirectory
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// SessionService materializes, moves and closes tutoring sessions. Writes that
// can book a meeting hold the meeting pool advisory lock.
type SessionService struct {
	db           txProvider
	locker       advisoryLocker
	sessions     sessionRepository
	enrollments  activeEnrollmentReader
	reminders    reminderRepository
	meetings     meetingDirectory
	profiles     profileDirectory
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	checker      *scheduling.ConflictChecker
	materializer *scheduling.Materializer
	cfg          SessionConfig
}

// NewSessionService constructs a SessionService.
func NewSessionService(deps SessionServiceDeps, cfg SessionConfig) *SessionService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "meeting_pool"
	}
	checker := scheduling.NewConflictChecker(cfg.Duration)
	cfg.Duration = checker.Duration()
	return &SessionService{
		db:           deps.DB,
		locker:       deps.Locker,
		sessions:     deps.Sessions,
		enrollments:  deps.Enrollments,
		reminders:    deps.Reminders,
		meetings:     deps.Meetings,
		profiles:     deps.Profiles,
		metrics:      deps.Metrics,
		validator:    deps.Validator,
		logger:       deps.Logger,
		checker:      checker,
		materializer: scheduling.NewMaterializer(deps.Logger),
		cfg:          cfg,
	}
}

// MaterializeWeek creates the sessions implied by active enrollments between
// weekStart and weekEnd, both inclusive. The run is all or nothing: a meeting
// conflict in any staged session rejects the whole range.
func (s *SessionService) MaterializeWeek(ctx context.Context, req dto.MaterializeSessionsRequest) (*dto.MaterializeSessionsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid materialize payload")
	}
	start, end, err := s.weekRange(req.WeekStart, req.WeekEnd)
	if err != nil {
		return nil, err
	}
	rangeEnd := end.AddDate(0, 0, 1)

	var created []models.Session
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.locker.XactLock(ctx, tx, s.cfg.LockKey); err != nil {
			return internalError(err, "failed to lock meeting pool")
		}
		enrollments, err := s.enrollments.ListActiveBetween(ctx, tx, start, rangeEnd)
		if err != nil {
			return internalError(err, "failed to load enrollments")
		}
		existing, err := s.sessions.ListBetween(ctx, tx, start.Add(-s.cfg.Duration), rangeEnd.Add(s.cfg.Duration))
		if err != nil {
			return internalError(err, "failed to load sessions")
		}

		staged := s.materializer.Materialize(start, end, enrollments, existing)
		booked := existing
		for _, session := range staged {
			if meetingID := session.MeetingValue(); meetingID != "" {
				conflict, err := s.checker.FindConflict(meetingID, session.Date, "", booked)
				if err != nil {
					return err
				}
				if conflict != nil {
					s.metrics.RecordResourceConflict()
					return s.meetingConflict(meetingID, conflict)
				}
			}
			booked = append(booked, session)
		}

		if err := s.sessions.CreateBatch(ctx, tx, staged); err != nil {
			return internalError(err, "failed to create sessions")
		}
		for _, session := range staged {
			if err := s.reminders.Schedule(ctx, tx, session.ID, session.Date.Add(-s.cfg.ReminderLead)); err != nil {
				return internalError(err, "failed to schedule reminder")
			}
		}
		created = staged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSessionsMaterialized(len(created))
	ids := make([]string, 0, len(created))
	for _, session := range created {
		ids = append(ids, session.ID)
	}
	s.logger.Info("sessions materialized",
		zap.Time("week_start", start),
		zap.Time("week_end", end),
		zap.Int("created", len(created)),
	)
	return &dto.MaterializeSessionsResponse{WeekStart: start, WeekEnd: end, Created: len(created), SessionIDs: ids}, nil
}

// Reschedule moves an active session, re-checking the meeting for conflicts
// while ignoring the session's own booking.
func (s *SessionService) Reschedule(ctx context.Context, id string, req dto.RescheduleSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	date, err := scheduling.ParseCandidate(req.Date)
	if err != nil {
		return nil, err
	}
	requestedMeeting := normalizeOptional(req.MeetingID)
	if requestedMeeting != nil {
		if err := s.ensureMeeting(ctx, *requestedMeeting); err != nil {
			return nil, err
		}
	}

	var session *models.Session
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.locker.XactLock(ctx, tx, s.cfg.LockKey); err != nil {
			return internalError(err, "failed to lock meeting pool")
		}
		var err error
		session, err = s.loadOpenSession(ctx, tx, id)
		if err != nil {
			return err
		}
		meetingID := session.MeetingID
		if requestedMeeting != nil {
			meetingID = requestedMeeting
		}
		if meetingID != nil {
			booked, err := s.sessions.ListByMeetingBetween(ctx, tx, *meetingID, date.Add(-s.cfg.Duration), date.Add(s.cfg.Duration))
			if err != nil {
				return internalError(err, "failed to load meeting bookings")
			}
			conflict, err := s.checker.FindConflict(*meetingID, date, session.ID, booked)
			if err != nil {
				return err
			}
			if conflict != nil {
				s.metrics.RecordResourceConflict()
				return s.meetingConflict(*meetingID, conflict)
			}
		}
		if err := s.sessions.UpdateSchedule(ctx, tx, session.ID, date, meetingID); err != nil {
			if repository.IsUniqueViolation(err) {
				at := date.In(s.cfg.Location).Format(time.RFC3339)
				return appErrors.Clone(appErrors.ErrConflict, "student and tutor already have a session at "+at).
					WithDetail("conflictDate", at)
			}
			return internalError(err, "failed to reschedule session")
		}
		if err := s.reminders.Schedule(ctx, tx, session.ID, date.Add(-s.cfg.ReminderLead)); err != nil {
			return internalError(err, "failed to reschedule reminder")
		}
		session.Date = date
		session.MeetingID = meetingID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Complete closes a session with the tutor's exit form.
func (s *SessionService) Complete(ctx context.Context, id string, req dto.CompleteSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exit form")
	}
	notes := strings.TrimSpace(req.ExitFormNotes)
	return s.close(ctx, id, models.SessionStatusComplete, &notes)
}

// Cancel cancels a session and its reminder.
func (s *SessionService) Cancel(ctx context.Context, id string) (*models.Session, error) {
	return s.close(ctx, id, models.SessionStatusCancelled, nil)
}

// List returns sessions plus pagination data.
func (s *SessionService) List(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error) {
	filter, err := s.filterFrom(query)
	if err != nil {
		return nil, nil, err
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list sessions")
	}
	return sessions, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ExportResult is a rendered roster document.
type ExportResult struct {
	Format   export.Format
	Filename string
	Content  []byte
}

// Export renders the sessions matching query as a roster document.
func (s *SessionService) Export(ctx context.Context, query dto.SessionQuery) (*ExportResult, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	filter, err := s.filterFrom(query)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.Search(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to load sessions")
	}

	ids := make([]string, 0, len(sessions)*2)
	for _, session := range sessions {
		ids = append(ids, session.TutorID, session.StudentID)
	}
	profiles, err := s.profiles.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, internalError(err, "failed to load profiles")
	}
	meetings, err := s.meetings.List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load meetings")
	}
	meetingNames := make(map[string]string, len(meetings))
	for _, m := range meetings {
		meetingNames[m.ID] = m.Name
	}

	table := export.Table{
		Title:   rosterTitle(filter, s.cfg.Location),
		Headers: []string{"Date", "Day", "Tutor", "Student", "Meeting", "Status"},
		Rows:    make([][]string, 0, len(sessions)),
	}
	for _, session := range sessions {
		local := session.Date.In(s.cfg.Location)
		table.Rows = append(table.Rows, []string{
			local.Format("2006-01-02 15:04"),
			local.Weekday().String(),
			nameOr(profiles[session.TutorID].FullName, session.TutorID),
			nameOr(profiles[session.StudentID].FullName, session.StudentID),
			nameOr(meetingNames[session.MeetingValue()], session.MeetingValue()),
			string(session.Status),
		})
	}
	content, err := export.Render(format, table)
	if err != nil {
		return nil, internalError(err, "failed to render roster")
	}
	return &ExportResult{
		Format:   format,
		Filename: format.Filename("sessions-" + time.Now().In(s.cfg.Location).Format("20060102")),
		Content:  content,
	}, nil
}

func (s *SessionService) close(ctx context.Context, id string, status models.SessionStatus, notes *string) (*models.Session, error) {
	var session *models.Session
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		session, err = s.loadOpenSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.sessions.UpdateStatus(ctx, tx, session.ID, status, notes); err != nil {
			return internalError(err, "failed to update session")
		}
		if err := s.reminders.Cancel(ctx, tx, session.ID); err != nil {
			return internalError(err, "failed to cancel reminder")
		}
		session.Status = status
		if notes != nil {
			session.ExitFormNotes = notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session closed", zap.String("session_id", id), zap.String("status", string(status)))
	return session, nil
}

// meetingConflict describes the booking that blocks meetingID. Sessions staged
// in the same batch have no ID yet and are named by enrollment.
func (s *SessionService) meetingConflict(meetingID string, holder *models.Session) *appErrors.Error {
	at := holder.Date.In(s.cfg.Location).Format(time.RFC3339)
	by := "session " + holder.ID
	if holder.ID == "" {
		by = "session staged for enrollment " + holder.EnrollmentID
	}
	err := appErrors.Clone(appErrors.ErrResourceConflict, fmt.Sprintf("meeting %s is booked at %s by %s", meetingID, at, by)).
		WithDetail("meetingId", meetingID).
		WithDetail("conflictDate", at)
	if holder.ID != "" {
		return err.WithDetail("conflictSessionId", holder.ID)
	}
	return err.WithDetail("enrollmentId", holder.EnrollmentID)
}

func (s *SessionService) loadOpenSession(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, tx, id, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, internalError(err, "failed to load session")
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("session is already %s", session.Status))
	}
	return session, nil
}

func (s *SessionService) ensureMeeting(ctx context.Context, id string) error {
	if _, err := s.meetings.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return internalError(err, "failed to load meeting")
	}
	return nil
}

func (s *SessionService) weekRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := parseDate(rawStart, s.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = startOfDay(start)
	end := start.AddDate(0, 0, 6)
	if strings.TrimSpace(rawEnd) != "" {
		parsed, err := parseDate(rawEnd, s.cfg.Location)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = startOfDay(parsed)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "weekEnd must not be before weekStart")
	}
	if end.After(start.AddDate(0, 0, maxMaterializeDays-1)) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range may span at most %d days", maxMaterializeDays))
	}
	return start, end, nil
}

func (s *SessionService) filterFrom(query dto.SessionQuery) (models.SessionFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.SessionFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session query")
	}
	filter := models.SessionFilter{
		EnrollmentID: query.EnrollmentID,
		TutorID:      query.TutorID,
		StudentID:    query.StudentID,
		MeetingID:    query.MeetingID,
		Status:       models.SessionStatus(query.Status),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if strings.TrimSpace(query.From) != "" {
		from, err := parseDate(query.From, s.cfg.Location)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.To); raw != "" {
		to, err := parseDate(raw, s.cfg.Location)
		if err != nil {
			return filter, err
		}
		if len(raw) == len(dateLayout) {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, nil
}

func rosterTitle(filter models.SessionFilter, loc *time.Location) string {
	switch {
	case filter.From != nil && filter.To != nil:
		return fmt.Sprintf("Sessions %s to %s", filter.From.In(loc).Format(dateLayout), filter.To.In(loc).Format(dateLayout))
	case filter.From != nil:
		return "Sessions from " + filter.From.In(loc).Format(dateLayout)
	case filter.To != nil:
		return "Sessions until " + filter.To.In(loc).Format(dateLayout)
	default:
		return "Sessions"
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
