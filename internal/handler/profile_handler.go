package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type profileService interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, req dto.CreateProfileRequest) (*models.Profile, error)
	UpdateMatching(ctx context.Context, id string, req dto.UpdateMatchingProfileRequest) (*models.Profile, error)
}

// ProfileHandler exposes tutor and student profiles.
type ProfileHandler struct {
	profiles profileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles profileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// List godoc
// @Summary List profiles
// @Tags Profiles
// @Produce json
// @Param role query string false "TUTOR or STUDENT"
// @Param status query string false "ACTIVE or INACTIVE"
// @Param search query string false "Name or email fragment"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /profiles [get]
func (h *ProfileHandler) List(c *gin.Context) {
	filter := models.ProfileFilter{
		Role:     models.ProfileRole(queryUpper(c, "role")),
		Status:   models.ProfileStatus(queryUpper(c, "status")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	profiles, pagination, err := h.profiles.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, pagination)
}

// Create godoc
// @Summary Register a profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body dto.CreateProfileRequest true "Profile"
// @Success 201 {object} response.Envelope
// @Router /profiles [post]
func (h *ProfileHandler) Create(c *gin.Context) {
	var req dto.CreateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.profiles.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile)
}

// Get godoc
// @Summary Get a profile with its matching metadata
// @Tags Profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/matching [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// UpdateMatching godoc
// @Summary Replace subjects, languages and availability
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body dto.UpdateMatchingProfileRequest true "Matching metadata"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/matching [put]
func (h *ProfileHandler) UpdateMatching(c *gin.Context) {
	var req dto.UpdateMatchingProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.profiles.UpdateMatching(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}
