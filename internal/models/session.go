package models

import "time"

// SessionStatus is the lifecycle of a scheduled session. Complete and Cancelled are terminal.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusComplete  SessionStatus = "COMPLETE"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusComplete || s == SessionStatusCancelled
}

// Session is one concrete occurrence of an enrollment.
type Session struct {
	ID            string        `db:"id" json:"id"`
	EnrollmentID  string        `db:"enrollment_id" json:"enrollment_id"`
	TutorID       string        `db:"tutor_id" json:"tutor_id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	Date          time.Time     `db:"date" json:"date"`
	Status        SessionStatus `db:"status" json:"status"`
	MeetingID     *string       `db:"meeting_id" json:"meeting_id,omitempty"`
	ExitFormNotes *string       `db:"exit_form_notes" json:"exit_form_notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// MeetingValue returns the meeting id or an empty string.
func (s Session) MeetingValue() string {
	if s.MeetingID == nil {
		return ""
	}
	return *s.MeetingID
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	EnrollmentID string
	TutorID      string
	StudentID    string
	MeetingID    string
	Status       SessionStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// ParticipantAction is a video-call presence transition.
type ParticipantAction string

const (
	ParticipantActionJoin  ParticipantAction = "JOIN"
	ParticipantActionLeave ParticipantAction = "LEAVE"
)

// ParticipantEvent records a participant joining or leaving a session's meeting.
type ParticipantEvent struct {
	ID            string            `db:"id" json:"id"`
	SessionID     *string           `db:"session_id" json:"session_id,omitempty"`
	MeetingID     string            `db:"meeting_id" json:"meeting_id"`
	ParticipantID string            `db:"participant_id" json:"participant_id"`
	Action        ParticipantAction `db:"action" json:"action"`
	OccurredAt    time.Time         `db:"occurred_at" json:"occurred_at"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}
