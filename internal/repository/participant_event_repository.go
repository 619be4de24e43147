package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ParticipantEventRepository stores video-call join/leave events.
type ParticipantEventRepository struct {
	db *sqlx.DB
}

// NewParticipantEventRepository constructs the repository.
func NewParticipantEventRepository(db *sqlx.DB) *ParticipantEventRepository {
	return &ParticipantEventRepository{db: db}
}

// Create appends an event.
func (r *ParticipantEventRepository) Create(ctx context.Context, event *models.ParticipantEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = time.Now().UTC()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = event.CreatedAt
	}
	const query = `INSERT INTO participant_events (id, session_id, meeting_id, participant_id, action, occurred_at, created_at)
VALUES (:id, :session_id, :meeting_id, :participant_id, :action, :occurred_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create participant event: %w", err)
	}
	return nil
}

// ListBySession returns a session's events in order.
func (r *ParticipantEventRepository) ListBySession(ctx context.Context, sessionID string) ([]models.ParticipantEvent, error) {
	const query = `SELECT id, session_id, meeting_id, participant_id, action, occurred_at, created_at FROM participant_events WHERE session_id = $1 ORDER BY occurred_at ASC`
	var events []models.ParticipantEvent
	if err := r.db.SelectContext(ctx, &events, query, sessionID); err != nil {
		return nil, fmt.Errorf("list participant events: %w", err)
	}
	return events, nil
}
