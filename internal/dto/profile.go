package dto

import "github.com/noah-isme/tutorhub-api/internal/models"

// UpdateMatchingProfileRequest replaces the matching metadata of a profile.
type UpdateMatchingProfileRequest struct {
	Status       string                      `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Subjects     []string                    `json:"subjects" validate:"required,min=1,dive,required"`
	Languages    []string                    `json:"languages" validate:"dive,required"`
	Availability []models.AvailabilityWindow `json:"availability" validate:"dive"`
}

// CreateProfileRequest registers a profile mirrored from the identity provider.
type CreateProfileRequest struct {
	ID       string `json:"id"`
	Role     string `json:"role" validate:"required,oneof=TUTOR STUDENT"`
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	UpdateMatchingProfileRequest
}
