package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ReminderRepository keeps the session reminders read by the email dispatcher.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository constructs the repository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Schedule creates or moves the reminder for a session.
func (r *ReminderRepository) Schedule(ctx context.Context, exec sqlx.ExtContext, sessionID string, sendAt time.Time) error {
	const query = `INSERT INTO session_reminders (session_id, send_at, status, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id) DO UPDATE SET send_at = EXCLUDED.send_at, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.exec(exec).ExecContext(ctx, query, sessionID, sendAt, models.ReminderStatusScheduled, time.Now().UTC()); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

// Cancel marks a session's reminder as cancelled.
func (r *ReminderRepository) Cancel(ctx context.Context, exec sqlx.ExtContext, sessionID string) error {
	const query = `UPDATE session_reminders SET status = $2, updated_at = $3 WHERE session_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, sessionID, models.ReminderStatusCancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}

// FindBySession returns a session's reminder.
func (r *ReminderRepository) FindBySession(ctx context.Context, sessionID string) (*models.SessionReminder, error) {
	const query = `SELECT session_id, send_at, status, updated_at FROM session_reminders WHERE session_id = $1`
	var reminder models.SessionReminder
	if err := r.db.GetContext(ctx, &reminder, query, sessionID); err != nil {
		return nil, err
	}
	return &reminder, nil
}
