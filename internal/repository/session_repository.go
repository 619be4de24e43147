package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const sessionColumns = `id, enrollment_id, tutor_id, student_id, date, status, meeting_id, exit_form_notes, created_at, updated_at`

// SessionRepository persists concrete session occurrences.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func sessionConditions(filter models.SessionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(expr string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(expr, len(args)+1))
		args = append(args, value)
	}
	if filter.EnrollmentID != "" {
		add("enrollment_id = $%d", filter.EnrollmentID)
	}
	if filter.TutorID != "" {
		add("tutor_id = $%d", filter.TutorID)
	}
	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if filter.MeetingID != "" {
		add("meeting_id = $%d", filter.MeetingID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("date <= $%d", *filter.To)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of sessions ordered by date.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	clause, args := sessionConditions(filter)
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM sessions%s ORDER BY date ASC LIMIT %d OFFSET %d", sessionColumns, clause, limit, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sessions"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// Search returns every session matching the filter without paging.
func (r *SessionRepository) Search(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	clause, args := sessionConditions(filter)
	query := fmt.Sprintf("SELECT %s FROM sessions%s ORDER BY date ASC", sessionColumns, clause)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session, optionally locking the row.
func (r *SessionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var session models.Session
	if err := sqlx.GetContext(ctx, r.exec(exec), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListBetween returns sessions dated within [from, to].
func (r *SessionRepository) ListBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE date >= $1 AND date <= $2 ORDER BY date ASC"
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, from, to); err != nil {
		return nil, fmt.Errorf("list sessions between: %w", err)
	}
	return sessions, nil
}

// ListByMeetingBetween returns sessions booked on meetingID within [from, to].
func (r *SessionRepository) ListByMeetingBetween(ctx context.Context, exec sqlx.ExtContext, meetingID string, from, to time.Time) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE meeting_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC"
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, meetingID, from, to); err != nil {
		return nil, fmt.Errorf("list meeting sessions: %w", err)
	}
	return sessions, nil
}

// CreateBatch inserts staged sessions, assigning ids.
func (r *SessionRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO sessions (id, enrollment_id, tutor_id, student_id, date, status, meeting_id, exit_form_notes, created_at, updated_at)
VALUES (:id, :enrollment_id, :tutor_id, :student_id, :date, :status, :meeting_id, :exit_form_notes, :created_at, :updated_at)`
	for i := range sessions {
		s := &sessions[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Status == "" {
			s.Status = models.SessionStatusActive
		}
		s.CreatedAt = now
		s.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, s); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	return nil
}

// UpdateSchedule moves a session to a new date and meeting.
func (r *SessionRepository) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time, meetingID *string) error {
	const query = `UPDATE sessions SET date = $2, meeting_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, date, meetingID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reschedule session: %w", err)
	}
	return nil
}

// UpdateStatus sets the session status and, when provided, the exit form notes.
func (r *SessionRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus, notes *string) error {
	const query = `UPDATE sessions SET status = $2, exit_form_notes = COALESCE($3, exit_form_notes), updated_at = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// FindActiveOnMeeting returns the latest active session on meetingID that started within [from, to].
func (r *SessionRepository) FindActiveOnMeeting(ctx context.Context, meetingID string, from, to time.Time) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE meeting_id = $1 AND status = $2 AND date >= $3 AND date <= $4 ORDER BY date DESC LIMIT 1"
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, meetingID, models.SessionStatusActive, from, to); err != nil {
		return nil, err
	}
	return &session, nil
}
