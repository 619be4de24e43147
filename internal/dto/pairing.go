package dto

import "github.com/noah-isme/tutorhub-api/internal/models"

// EnqueuePairingRequest places a profile in the pairing queue.
type EnqueuePairingRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=TUTOR STUDENT"`
	Priority  *int   `json:"priority" validate:"omitempty,min=0"`
}

// UpdatePriorityRequest changes a queued request's priority.
type UpdatePriorityRequest struct {
	Priority *int `json:"priority" validate:"required,min=0"`
}

// ResetMatchesRequest must carry the exact confirmation phrase.
type ResetMatchesRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}

// ConfirmMatchRequest confirms a proposed match, optionally assigning a meeting.
type ConfirmMatchRequest struct {
	MeetingID *string `json:"meetingId"`
}

// QueueEntry is a queued request enriched with the profile name.
type QueueEntry struct {
	models.PairingRequest
	Position    int    `json:"position"`
	ProfileName string `json:"profileName,omitempty"`
}

// QueueSnapshot lists both queues in serving order.
type QueueSnapshot struct {
	Tutors   []QueueEntry `json:"tutors"`
	Students []QueueEntry `json:"students"`
}

// ProposedMatch summarises one pairing created by a cycle.
type ProposedMatch struct {
	MatchID         string                     `json:"matchId"`
	EnrollmentID    string                     `json:"enrollmentId"`
	TutorID         string                     `json:"tutorId"`
	StudentID       string                     `json:"studentId"`
	Score           float64                    `json:"score"`
	SharedSubjects  []string                   `json:"sharedSubjects"`
	SharedLanguages []string                   `json:"sharedLanguages"`
	Availability    models.AvailabilityWindows `json:"availability"`
}

// ResolveQueuesResponse reports the outcome of a match cycle.
type ResolveQueuesResponse struct {
	Matches         []ProposedMatch `json:"matches"`
	UnmatchedTutors int             `json:"unmatchedTutors"`
	WaitingStudents int             `json:"waitingStudents"`
}

// ClearQueuesResponse reports how many requests were cancelled.
type ClearQueuesResponse struct {
	Cancelled int64 `json:"cancelled"`
}

// ResetMatchesResponse reports what a reset undid.
type ResetMatchesResponse struct {
	MatchesDeleted     int64 `json:"matchesDeleted"`
	EnrollmentsDeleted int64 `json:"enrollmentsDeleted"`
	RequestsReopened   int64 `json:"requestsReopened"`
	RequestsCancelled  int64 `json:"requestsCancelled"`
}
