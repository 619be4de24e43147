package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type meetingStoreStub struct {
	items     []models.Meeting
	createErr error
}

func (m *meetingStoreStub) List(ctx context.Context) ([]models.Meeting, error) {
	return m.items, nil
}

func (m *meetingStoreStub) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *meetingStoreStub) FindByExternalID(ctx context.Context, externalID string) (*models.Meeting, error) {
	for i := range m.items {
		if m.items[i].ExternalID != nil && *m.items[i].ExternalID == externalID {
			return &m.items[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *meetingStoreStub) Create(ctx context.Context, meeting *models.Meeting) error {
	if m.createErr != nil {
		return m.createErr
	}
	meeting.ID = "room-new"
	m.items = append(m.items, *meeting)
	return nil
}

type participantEventStub struct {
	events []models.ParticipantEvent
}

func (p *participantEventStub) Create(ctx context.Context, event *models.ParticipantEvent) error {
	p.events = append(p.events, *event)
	return nil
}

func newMeetingServiceFixture() (*MeetingService, *meetingStoreStub, *sessionRepoStub, *participantEventStub) {
	meetings := &meetingStoreStub{items: []models.Meeting{
		{ID: "room-1", Name: "Room 1", Link: "https://meet.example.com/r1", ExternalID: roomRef("zoom-111")},
	}}
	sessions := &sessionRepoStub{}
	events := &participantEventStub{}
	svc := NewMeetingService(meetings, sessions, events, time.Hour, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC) }
	return svc, meetings, sessions, events
}

func TestMeetingServiceCreate(t *testing.T) {
	svc, meetings, _, _ := newMeetingServiceFixture()

	meeting, err := svc.Create(context.Background(), dto.CreateMeetingRequest{Name: " Room 2 ", Link: "https://meet.example.com/r2", ExternalID: roomRef("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Room 2", meeting.Name)
	assert.Nil(t, meeting.ExternalID)
	assert.Len(t, meetings.items, 2)

	_, err = svc.Create(context.Background(), dto.CreateMeetingRequest{Name: "Bad", Link: "not a url"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	meetings.createErr = &pq.Error{Code: "23505"}
	_, err = svc.Create(context.Background(), dto.CreateMeetingRequest{Name: "Dup", Link: "https://meet.example.com/r3", ExternalID: roomRef("zoom-111")})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestMeetingServiceCheckAvailability(t *testing.T) {
	svc, _, sessions, _ := newMeetingServiceFixture()
	booked := sessions.add(models.Session{Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), MeetingID: roomRef("room-1")})

	resp, err := svc.CheckAvailability(context.Background(), "room-1", "2024-03-04T09:30:00Z", "")
	require.NoError(t, err)
	assert.False(t, resp.Available)
	require.NotNil(t, resp.ConflictID)
	assert.Equal(t, booked.ID, *resp.ConflictID)

	resp, err = svc.CheckAvailability(context.Background(), "room-1", "2024-03-04T10:00:00Z", "")
	require.NoError(t, err)
	assert.True(t, resp.Available, "sessions are half-open intervals")

	resp, err = svc.CheckAvailability(context.Background(), "room-1", "2024-03-04T09:30:00Z", booked.ID)
	require.NoError(t, err)
	assert.True(t, resp.Available)

	_, err = svc.CheckAvailability(context.Background(), "room-9", "2024-03-04T09:30:00Z", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.CheckAvailability(context.Background(), "room-1", "monday", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidAvailability))
}

func TestMeetingServiceRecordParticipantEvents(t *testing.T) {
	svc, _, sessions, events := newMeetingServiceFixture()
	session := sessions.add(models.Session{Date: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), MeetingID: roomRef("room-1")})
	unbound := sessions.add(models.Session{Date: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)})

	joined, err := svc.RecordParticipantJoin(context.Background(), dto.ParticipantEventRequest{MeetingID: "room-1", ParticipantID: "student-1"})
	require.NoError(t, err)
	require.NotNil(t, joined.SessionID)
	assert.Equal(t, session.ID, *joined.SessionID)
	assert.Equal(t, models.ParticipantActionJoin, joined.Action)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC), joined.OccurredAt)

	left, err := svc.RecordParticipantLeave(context.Background(), dto.ParticipantEventRequest{SessionID: session.ID, ParticipantID: "student-1"})
	require.NoError(t, err)
	assert.Equal(t, "room-1", left.MeetingID)

	stray, err := svc.RecordParticipantJoin(context.Background(), dto.ParticipantEventRequest{
		MeetingID:     "room-1",
		ParticipantID: "guest",
		OccurredAt:    time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Nil(t, stray.SessionID)
	assert.Len(t, events.events, 3)

	_, err = svc.RecordParticipantJoin(context.Background(), dto.ParticipantEventRequest{ParticipantID: "student-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RecordParticipantJoin(context.Background(), dto.ParticipantEventRequest{SessionID: unbound.ID, ParticipantID: "student-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.RecordParticipantJoin(context.Background(), dto.ParticipantEventRequest{SessionID: "missing", ParticipantID: "student-1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestMeetingServiceHandleVideoEvent(t *testing.T) {
	svc, _, _, events := newMeetingServiceFixture()

	var event dto.VideoWebhookEvent
	event.Event = VideoEventParticipantLeft
	event.Payload.MeetingID = "zoom-111"
	event.Payload.ParticipantID = "tutor-1"

	recorded, err := svc.HandleVideoEvent(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, "room-1", recorded.MeetingID)
	assert.Equal(t, models.ParticipantActionLeave, recorded.Action)

	event.Event = "meeting.started"
	recorded, err = svc.HandleVideoEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, recorded)
	assert.Len(t, events.events, 1)

	event.Event = VideoEventParticipantJoined
	event.Payload.MeetingID = "zoom-000"
	_, err = svc.HandleVideoEvent(context.Background(), event)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
