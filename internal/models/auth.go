package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the payload of access tokens issued by the auth provider.
type JWTClaims struct {
	UserID string   `json:"sub_id,omitempty"`
	Role   UserRole `json:"app_role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Subject returns the user id, preferring the explicit claim over the registered subject.
func (c *JWTClaims) Subject() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
