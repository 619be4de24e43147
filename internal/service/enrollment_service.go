package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, tutorID, studentID, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateAvailability(ctx context.Context, id string, windows models.AvailabilityWindows) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type profileReader interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

// EnrollmentService manages tutor/student pairings that produce sessions.
type EnrollmentService struct {
	repo      enrollmentRepository
	profiles  profileReader
	meetings  meetingLookup
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, profiles profileReader, meetings meetingLookup, validate *validator.Validate, logger *zap.Logger, location *time.Location) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &EnrollmentService{repo: repo, profiles: profiles, meetings: meetings, validator: validate, logger: logger, location: location}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns enrollment details.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return detail, nil
}

// Create registers a manual enrollment. It is active immediately.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.ensureRole(ctx, req.TutorID, models.ProfileRoleTutor); err != nil {
		return nil, err
	}
	if err := s.ensureRole(ctx, req.StudentID, models.ProfileRoleStudent); err != nil {
		return nil, err
	}

	start, err := parseDate(req.StartDate, s.location)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if strings.TrimSpace(req.EndDate) != "" {
		parsed, err := parseDate(req.EndDate, s.location)
		if err != nil {
			return nil, err
		}
		if parsed.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
		}
		end = &parsed
	}

	windows, err := scheduling.NormalizeWindows(req.Availability)
	if err != nil {
		return nil, err
	}

	meetingID := normalizeOptional(req.MeetingID)
	if meetingID != nil {
		if _, err := s.meetings.FindByID(ctx, *meetingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
			}
			return nil, internalError(err, "failed to load meeting")
		}
	}

	exists, err := s.repo.ExistsActive(ctx, req.TutorID, req.StudentID, "")
	if err != nil {
		return nil, internalError(err, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tutor and student are already enrolled")
	}

	enrollment := &models.Enrollment{
		TutorID:      req.TutorID,
		StudentID:    req.StudentID,
		Summary:      strings.TrimSpace(req.Summary),
		StartDate:    start,
		EndDate:      end,
		Availability: windows,
		MeetingID:    meetingID,
		Status:       models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, nil, enrollment); err != nil {
		return nil, internalError(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("tutor_id", enrollment.TutorID),
		zap.String("student_id", enrollment.StudentID),
	)
	return s.Get(ctx, enrollment.ID)
}

// UpdateAvailability replaces the weekly windows of an enrollment.
func (s *EnrollmentService) UpdateAvailability(ctx context.Context, id string, req dto.UpdateAvailabilityRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	windows, err := scheduling.NormalizeWindows(req.Availability)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAvailability(ctx, id, windows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to update availability")
	}
	return s.Get(ctx, id)
}

// Delete ends a pairing. Sessions of the enrollment are removed with it.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return internalError(err, "failed to delete enrollment")
	}
	s.logger.Info("enrollment deleted", zap.String("enrollment_id", id))
	return nil
}

func (s *EnrollmentService) ensureRole(ctx context.Context, id string, role models.ProfileRole) error {
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, strings.ToLower(string(role))+" profile not found")
		}
		return internalError(err, "failed to load profile")
	}
	if profile.Role != role {
		return appErrors.Clone(appErrors.ErrValidation, "profile "+id+" is not a "+strings.ToLower(string(role)))
	}
	return nil
}
