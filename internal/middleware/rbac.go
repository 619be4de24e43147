package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

// RequireRoles only lets callers with one of roles through.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return authorize(false, roles)
}

// RequireRolesOrSelf also admits the caller whose subject equals the :id path parameter.
func RequireRolesOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return authorize(true, roles)
}

func authorize(allowSelf bool, roles []models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf {
			if id := c.Param("id"); id != "" && id == claims.Subject() {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
	}
}
