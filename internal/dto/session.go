package dto

import "time"

// MaterializeSessionsRequest expands enrollments into sessions for a week.
// WeekEnd defaults to six days after WeekStart.
type MaterializeSessionsRequest struct {
	WeekStart string `json:"weekStart" validate:"required"`
	WeekEnd   string `json:"weekEnd"`
}

// MaterializeSessionsResponse lists the created sessions.
type MaterializeSessionsResponse struct {
	WeekStart  time.Time `json:"weekStart"`
	WeekEnd    time.Time `json:"weekEnd"`
	Created    int       `json:"created"`
	SessionIDs []string  `json:"sessionIds"`
}

// RescheduleSessionRequest moves a session, optionally to another meeting.
type RescheduleSessionRequest struct {
	Date      string  `json:"date" validate:"required"`
	MeetingID *string `json:"meetingId"`
}

// CompleteSessionRequest carries the tutor's exit form.
type CompleteSessionRequest struct {
	ExitFormNotes string `json:"exitFormNotes" validate:"required"`
}

// SessionQuery filters session listings and exports.
type SessionQuery struct {
	EnrollmentID string `form:"enrollment_id"`
	TutorID      string `form:"tutor_id"`
	StudentID    string `form:"student_id"`
	MeetingID    string `form:"meeting_id"`
	Status       string `form:"status" validate:"omitempty,oneof=ACTIVE COMPLETE CANCELLED"`
	From         string `form:"from"`
	To           string `form:"to"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
	Format       string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
