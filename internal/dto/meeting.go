package dto

import "time"

// CreateMeetingRequest adds a meeting link to the pool.
type CreateMeetingRequest struct {
	Name       string  `json:"name" validate:"required"`
	Link       string  `json:"link" validate:"required,url"`
	ExternalID *string `json:"externalId"`
}

// MeetingAvailabilityResponse answers an availability check.
type MeetingAvailabilityResponse struct {
	MeetingID  string     `json:"meetingId"`
	Date       time.Time  `json:"date"`
	Available  bool       `json:"available"`
	ConflictID *string    `json:"conflictSessionId,omitempty"`
	ConflictAt *time.Time `json:"conflictDate,omitempty"`
}

// ParticipantEventRequest is a join or leave notification keyed by internal ids.
type ParticipantEventRequest struct {
	SessionID     string    `json:"sessionId"`
	MeetingID     string    `json:"meetingId"`
	ParticipantID string    `json:"participantId" validate:"required"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// VideoWebhookEvent is the provider payload delivered to the webhook endpoint.
type VideoWebhookEvent struct {
	Event   string `json:"event" validate:"required"`
	Payload struct {
		MeetingID     string    `json:"meeting_id" validate:"required"`
		ParticipantID string    `json:"participant_id" validate:"required"`
		Timestamp     time.Time `json:"timestamp"`
	} `json:"payload"`
}
