package dto

import "github.com/noah-isme/tutorhub-api/internal/models"

// CreateEnrollmentRequest creates a manual, immediately active enrollment.
type CreateEnrollmentRequest struct {
	TutorID      string                      `json:"tutorId" validate:"required"`
	StudentID    string                      `json:"studentId" validate:"required"`
	Summary      string                      `json:"summary" validate:"max=500"`
	StartDate    string                      `json:"startDate" validate:"required"`
	EndDate      string                      `json:"endDate"`
	Availability []models.AvailabilityWindow `json:"availability" validate:"required,min=1,dive"`
	MeetingID    *string                     `json:"meetingId"`
}

// UpdateAvailabilityRequest replaces availability windows wholesale.
type UpdateAvailabilityRequest struct {
	Availability []models.AvailabilityWindow `json:"availability" validate:"required,min=1,dive"`
}
