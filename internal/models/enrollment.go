package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending EnrollmentStatus = "PENDING"
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
)

// Enrollment is a tutor-student pairing with its recurring weekly availability.
type Enrollment struct {
	ID           string              `db:"id" json:"id"`
	TutorID      string              `db:"tutor_id" json:"tutor_id"`
	StudentID    string              `db:"student_id" json:"student_id"`
	Summary      string              `db:"summary" json:"summary"`
	StartDate    time.Time           `db:"start_date" json:"start_date"`
	EndDate      *time.Time          `db:"end_date" json:"end_date,omitempty"`
	Availability AvailabilityWindows `db:"availability" json:"availability"`
	MeetingID    *string             `db:"meeting_id" json:"meeting_id,omitempty"`
	Status       EnrollmentStatus    `db:"status" json:"status"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// Covers reports whether day falls inside the enrollment's date range.
// Start and end dates are compared as calendar dates.
func (e Enrollment) Covers(day time.Time) bool {
	current := civilDate(day, day.Location())
	if !e.StartDate.IsZero() && current.Before(civilDate(e.StartDate, day.Location())) {
		return false
	}
	if e.EndDate != nil && current.After(civilDate(*e.EndDate, day.Location())) {
		return false
	}
	return true
}

// EnrollmentDetail enriches Enrollment with tutor and student names.
type EnrollmentDetail struct {
	Enrollment
	TutorName   string `db:"tutor_name" json:"tutor_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	TutorID   string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
