package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type profileRepository interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpdateMatching(ctx context.Context, profile *models.Profile) error
}

// ProfileService manages tutor and student matching profiles.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// List returns profiles plus pagination data.
func (s *ProfileService) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "role must be TUTOR or STUDENT")
	}
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list profiles")
	}
	return profiles, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a profile by id.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, internalError(err, "failed to load profile")
	}
	return profile, nil
}

// Create registers a profile.
func (s *ProfileService) Create(ctx context.Context, req dto.CreateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	windows, err := scheduling.NormalizeWindows(req.Availability)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		ID:           strings.TrimSpace(req.ID),
		Role:         models.ProfileRole(req.Role),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Status:       models.ProfileStatus(req.Status),
		Subjects:     cleanTags(req.Subjects),
		Languages:    cleanTags(req.Languages),
		Availability: windows,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "profile already exists")
		}
		return nil, internalError(err, "failed to create profile")
	}
	s.logger.Info("profile created", zap.String("profile_id", profile.ID), zap.String("role", string(profile.Role)))
	return profile, nil
}

// UpdateMatching replaces subjects, languages and availability of a profile.
func (s *ProfileService) UpdateMatching(ctx context.Context, id string, req dto.UpdateMatchingProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	windows, err := scheduling.NormalizeWindows(req.Availability)
	if err != nil {
		return nil, err
	}

	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != "" {
		profile.Status = models.ProfileStatus(req.Status)
	}
	profile.Subjects = cleanTags(req.Subjects)
	profile.Languages = cleanTags(req.Languages)
	profile.Availability = windows

	if err := s.repo.UpdateMatching(ctx, profile); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, internalError(err, "failed to update profile")
	}
	return profile, nil
}

// cleanTags trims, drops blanks and case-insensitive duplicates, keeping first spelling.
func cleanTags(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	sort.Strings(result)
	return result
}
