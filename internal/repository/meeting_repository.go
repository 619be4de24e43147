package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const meetingColumns = `id, name, link, external_id, created_at, updated_at`

// MeetingRepository manages the pool of meeting links.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// List returns all meetings ordered by name.
func (r *MeetingRepository) List(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, "SELECT "+meetingColumns+" FROM meetings ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// FindByID returns a meeting by id.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, "SELECT "+meetingColumns+" FROM meetings WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// FindByExternalID resolves a meeting from the video provider's identifier.
func (r *MeetingRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, "SELECT "+meetingColumns+" FROM meetings WHERE external_id = $1", externalID); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// Create inserts a meeting.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	const query = `INSERT INTO meetings (id, name, link, external_id, created_at, updated_at) VALUES (:id, :name, :link, :external_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}
