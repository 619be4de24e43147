package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := middleware.CurrentClaims(c)
	return claims
}

// bindJSON decodes the body into dest, answering 400 itself on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryUpper(c *gin.Context, key string) string {
	return strings.ToUpper(strings.TrimSpace(c.Query(key)))
}
