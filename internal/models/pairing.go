package models

import (
	"time"

	"github.com/lib/pq"
)

// PairingRequestStatus tracks a queued pairing intent.
type PairingRequestStatus string

const (
	PairingRequestStatusPending   PairingRequestStatus = "PENDING"
	PairingRequestStatusAccepted  PairingRequestStatus = "ACCEPTED"
	PairingRequestStatusRejected  PairingRequestStatus = "REJECTED"
	PairingRequestStatusCancelled PairingRequestStatus = "CANCELLED"
)

// PairingRequest is a tutor or student waiting to be matched.
// Lower Priority values are served first; Seq records insertion order.
type PairingRequest struct {
	ID        string               `db:"id" json:"id"`
	ProfileID string               `db:"profile_id" json:"profile_id"`
	Type      ProfileRole          `db:"type" json:"type"`
	Priority  int                  `db:"priority" json:"priority"`
	Status    PairingRequestStatus `db:"status" json:"status"`
	Seq       int64                `db:"seq" json:"seq"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
}

// PairingMatchStatus tracks admin review of an engine proposal.
type PairingMatchStatus string

const (
	PairingMatchStatusPending   PairingMatchStatus = "PENDING"
	PairingMatchStatusConfirmed PairingMatchStatus = "CONFIRMED"
	PairingMatchStatusRejected  PairingMatchStatus = "REJECTED"
)

// PairingMatch records a tutor/student pairing produced by a match cycle.
type PairingMatch struct {
	ID               string             `db:"id" json:"id"`
	TutorRequestID   string             `db:"tutor_request_id" json:"tutor_request_id"`
	StudentRequestID string             `db:"student_request_id" json:"student_request_id"`
	TutorID          string             `db:"tutor_id" json:"tutor_id"`
	StudentID        string             `db:"student_id" json:"student_id"`
	EnrollmentID     *string            `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Score            float64            `db:"score" json:"score"`
	SharedSubjects   pq.StringArray     `db:"shared_subjects" json:"shared_subjects"`
	SharedLanguages  pq.StringArray     `db:"shared_languages" json:"shared_languages"`
	Status           PairingMatchStatus `db:"status" json:"status"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// PairingMatchFilter narrows match listings.
type PairingMatchFilter struct {
	Status   PairingMatchStatus
	Page     int
	PageSize int
}
