package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type sessionRepoStub struct {
	items []*models.Session
	seq   int
}

func (s *sessionRepoStub) add(session models.Session) *models.Session {
	s.seq++
	if session.ID == "" {
		session.ID = fmt.Sprintf("sess-%d", s.seq)
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	stored := session
	s.items = append(s.items, &stored)
	return &stored
}

func (s *sessionRepoStub) find(id string) *models.Session {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (s *sessionRepoStub) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	result, _ := s.Search(ctx, filter)
	return result, len(result), nil
}

func (s *sessionRepoStub) Search(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	var result []models.Session
	for _, item := range s.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.From != nil && item.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && item.Date.After(*filter.To) {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (s *sessionRepoStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.Session, error) {
	item := s.find(id)
	if item == nil {
		return nil, sql.ErrNoRows
	}
	clone := *item
	return &clone, nil
}

func (s *sessionRepoStub) ListBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Session, error) {
	return s.Search(ctx, models.SessionFilter{From: &from, To: &to})
}

func (s *sessionRepoStub) ListByMeetingBetween(ctx context.Context, exec sqlx.ExtContext, meetingID string, from, to time.Time) ([]models.Session, error) {
	all, _ := s.ListBetween(ctx, exec, from, to)
	var result []models.Session
	for _, item := range all {
		if item.MeetingValue() == meetingID {
			result = append(result, item)
		}
	}
	return result, nil
}

func (s *sessionRepoStub) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	for i := range sessions {
		stored := s.add(sessions[i])
		sessions[i].ID = stored.ID
	}
	return nil
}

func (s *sessionRepoStub) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time, meetingID *string) error {
	item := s.find(id)
	if item == nil {
		return nil
	}
	for _, other := range s.items {
		if other.ID != id && other.StudentID == item.StudentID && other.TutorID == item.TutorID && other.Date.Equal(date) {
			return &pq.Error{Code: "23505", Constraint: "sessions_student_id_tutor_id_date_key"}
		}
	}
	item.Date = date
	item.MeetingID = meetingID
	return nil
}

func (s *sessionRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus, notes *string) error {
	if item := s.find(id); item != nil {
		item.Status = status
		if notes != nil {
			item.ExitFormNotes = notes
		}
	}
	return nil
}

func (s *sessionRepoStub) FindActiveOnMeeting(ctx context.Context, meetingID string, from, to time.Time) (*models.Session, error) {
	var found *models.Session
	for _, item := range s.items {
		if item.MeetingValue() != meetingID || item.Status != models.SessionStatusActive {
			continue
		}
		if item.Date.Before(from) || item.Date.After(to) {
			continue
		}
		if found == nil || item.Date.After(found.Date) {
			found = item
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	clone := *found
	return &clone, nil
}

type activeEnrollmentStub []models.Enrollment

func (s activeEnrollmentStub) ListActiveBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Enrollment, error) {
	return s, nil
}

type reminderRepoStub struct {
	scheduled map[string]time.Time
	cancelled []string
}

func (r *reminderRepoStub) Schedule(ctx context.Context, exec sqlx.ExtContext, sessionID string, sendAt time.Time) error {
	r.scheduled[sessionID] = sendAt
	return nil
}

func (r *reminderRepoStub) Cancel(ctx context.Context, exec sqlx.ExtContext, sessionID string) error {
	r.cancelled = append(r.cancelled, sessionID)
	delete(r.scheduled, sessionID)
	return nil
}

type meetingDirectoryStub []models.Meeting

func (m meetingDirectoryStub) List(ctx context.Context) ([]models.Meeting, error) {
	return m, nil
}

func (m meetingDirectoryStub) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	for i := range m {
		if m[i].ID == id {
			return &m[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

type sessionFixture struct {
	svc       *SessionService
	mock      sqlmock.Sqlmock
	sessions  *sessionRepoStub
	reminders *reminderRepoStub
	lock      *lockStub
	metrics   *MetricsService
}

func newSessionFixture(t *testing.T, enrollments ...models.Enrollment) *sessionFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &sessionFixture{
		mock:      mock,
		sessions:  &sessionRepoStub{},
		reminders: &reminderRepoStub{scheduled: make(map[string]time.Time)},
		lock:      &lockStub{},
		metrics:   NewMetricsService(),
	}
	f.svc = NewSessionService(SessionServiceDeps{
		DB:          sqlx.NewDb(db, "sqlmock"),
		Locker:      f.lock,
		Sessions:    f.sessions,
		Enrollments: activeEnrollmentStub(enrollments),
		Reminders:   f.reminders,
		Meetings:    meetingDirectoryStub{{ID: "room-1", Name: "Room 1"}, {ID: "room-2", Name: "Room 2"}},
		Profiles: newProfileRepoStub(
			activeProfile("tutor-1", models.ProfileRoleTutor, "Ada"),
			activeProfile("student-1", models.ProfileRoleStudent, "Sam"),
		),
		Metrics: f.metrics,
	}, SessionConfig{Duration: time.Hour, ReminderLead: 24 * time.Hour, Location: time.UTC, LockKey: "meeting_pool"})
	return f
}

func roomRef(id string) *string { return &id }

func mondayEnrollment(id, tutorID, studentID, meetingID string) models.Enrollment {
	return models.Enrollment{
		ID:           id,
		TutorID:      tutorID,
		StudentID:    studentID,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Availability: models.AvailabilityWindows{{Day: "MONDAY", StartTime: "09:00", EndTime: "10:00"}},
		MeetingID:    roomRef(meetingID),
		Status:       models.EnrollmentStatusActive,
	}
}

func TestSessionServiceMaterializeWeek(t *testing.T) {
	f := newSessionFixture(t, mondayEnrollment("enr-1", "tutor-1", "student-1", "room-1"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.svc.MaterializeWeek(context.Background(), dto.MaterializeSessionsRequest{WeekStart: "2024-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), resp.WeekEnd)
	require.Len(t, f.sessions.items, 1)

	session := f.sessions.items[0]
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), session.Date)
	assert.Equal(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), f.reminders.scheduled[session.ID])
	assert.Equal(t, []string{"meeting_pool"}, f.lock.taken)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SessionsMaterialized)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	again, err := f.svc.MaterializeWeek(context.Background(), dto.MaterializeSessionsRequest{WeekStart: "2024-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Len(t, f.sessions.items, 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceMaterializeWeekConflictRollsBack(t *testing.T) {
	f := newSessionFixture(t,
		mondayEnrollment("enr-1", "tutor-1", "student-1", "room-1"),
		mondayEnrollment("enr-2", "tutor-2", "student-2", "room-1"),
	)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.MaterializeWeek(context.Background(), dto.MaterializeSessionsRequest{WeekStart: "2024-03-04", WeekEnd: "2024-03-10"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrResourceConflict))
	assert.Equal(t, "enr-1", appErrors.FromError(err).Details["enrollmentId"])
	assert.Empty(t, f.sessions.items)
	assert.Empty(t, f.reminders.scheduled)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().ResourceConflicts)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceMaterializeWeekValidation(t *testing.T) {
	f := newSessionFixture(t)
	cases := []dto.MaterializeSessionsRequest{
		{WeekStart: ""},
		{WeekStart: "04/03/2024"},
		{WeekStart: "2024-03-10", WeekEnd: "2024-03-04"},
		{WeekStart: "2024-03-01", WeekEnd: "2024-05-01"},
	}
	for _, req := range cases {
		_, err := f.svc.MaterializeWeek(context.Background(), req)
		require.Error(t, err, "%+v", req)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "%+v", req)
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceReschedule(t *testing.T) {
	f := newSessionFixture(t)
	mine := f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), MeetingID: roomRef("room-1")})
	other := f.sessions.add(models.Session{TutorID: "tutor-2", StudentID: "student-2", Date: time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), MeetingID: roomRef("room-1")})

	// Shifting by 30 minutes overlaps only the session itself.
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	moved, err := f.svc.Reschedule(context.Background(), mine.ID, dto.RescheduleSessionRequest{Date: "2024-03-04T09:30:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC), moved.Date)
	assert.Equal(t, time.Date(2024, 3, 3, 9, 30, 0, 0, time.UTC), f.reminders.scheduled[mine.ID])

	// 10:30 overlaps the 11:00 booking.
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Reschedule(context.Background(), mine.ID, dto.RescheduleSessionRequest{Date: "2024-03-04T10:30:00Z"})
	assert.True(t, appErrors.Is(err, appErrors.ErrResourceConflict))
	assert.Equal(t, other.ID, appErrors.FromError(err).Details["conflictSessionId"])

	// Same slot on another room is free.
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	moved, err = f.svc.Reschedule(context.Background(), mine.ID, dto.RescheduleSessionRequest{Date: "2024-03-04T11:00:00Z", MeetingID: roomRef("room-2")})
	require.NoError(t, err)
	assert.Equal(t, "room-2", moved.MeetingValue())

	_, err = f.svc.Reschedule(context.Background(), mine.ID, dto.RescheduleSessionRequest{Date: "tomorrow"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidAvailability))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceRescheduleOntoPairSlotConflicts(t *testing.T) {
	f := newSessionFixture(t)
	first := f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)})
	f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Reschedule(context.Background(), first.ID, dto.RescheduleSessionRequest{Date: "2024-03-11T09:00:00Z"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), first.Date)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceCompleteAndCancel(t *testing.T) {
	f := newSessionFixture(t)
	first := f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)})
	second := f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	done, err := f.svc.Complete(context.Background(), first.ID, dto.CompleteSessionRequest{ExitFormNotes: " covered fractions "})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusComplete, done.Status)
	require.NotNil(t, done.ExitFormNotes)
	assert.Equal(t, "covered fractions", *done.ExitFormNotes)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Cancel(context.Background(), first.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict), "terminal states are final")

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	cancelled, err := f.svc.Cancel(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, cancelled.Status)
	assert.Equal(t, []string{first.ID, second.ID}, f.reminders.cancelled)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Cancel(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSessionServiceListFilters(t *testing.T) {
	f := newSessionFixture(t)
	f.sessions.add(models.Session{Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)})
	f.sessions.add(models.Session{Date: time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)})
	f.sessions.add(models.Session{Date: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)})

	sessions, pagination, err := f.svc.List(context.Background(), dto.SessionQuery{From: "2024-03-04", To: "2024-03-10"})
	require.NoError(t, err)
	assert.Len(t, sessions, 2, "the to date includes the whole day")
	assert.Equal(t, 2, pagination.TotalCount)

	_, _, err = f.svc.List(context.Background(), dto.SessionQuery{Status: "DONE"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSessionServiceExport(t *testing.T) {
	f := newSessionFixture(t)
	f.sessions.add(models.Session{TutorID: "tutor-1", StudentID: "student-1", Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), MeetingID: roomRef("room-1")})

	csvResult, err := f.svc.Export(context.Background(), dto.SessionQuery{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, csvResult.Format)
	assert.Contains(t, string(csvResult.Content), "2024-03-04 09:00,Monday,Ada,Sam,Room 1,ACTIVE")

	pdfResult, err := f.svc.Export(context.Background(), dto.SessionQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfResult.Content, []byte("%PDF-")))
	assert.Contains(t, pdfResult.Filename, ".pdf")
}
