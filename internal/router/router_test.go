package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestEngine() http.Handler {
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1", Metrics: config.MetricsConfig{Enabled: true}}
	metrics := service.NewMetricsService()
	tokens := tokenStub{
		"student": {UserID: "student-1", Role: models.RoleStudent},
	}
	// Only authorization outcomes are exercised, so handlers without services suffice.
	h := Handlers{
		Metrics:       handler.NewMetricsHandler(metrics, nil),
		Profiles:      handler.NewProfileHandler(nil),
		Pairing:       handler.NewPairingHandler(nil, nil),
		Enrollments:   handler.NewEnrollmentHandler(nil),
		Sessions:      handler.NewSessionHandler(nil),
		Meetings:      handler.NewMeetingHandler(nil),
		Notifications: handler.NewNotificationHandler(nil),
		Webhooks:      handler.NewWebhookHandler(nil, nil, nil),
	}
	return New(cfg, zap.NewNop(), metrics, tokens, h)
}

func TestRouterPublicEndpoints(t *testing.T) {
	r := newTestEngine()
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouterProtectsAdminRoutes(t *testing.T) {
	r := newTestEngine()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/pairing/resolve"},
		{http.MethodPost, "/api/v1/pairing/reset"},
		{http.MethodGet, "/api/v1/pairing/queue"},
		{http.MethodPost, "/api/v1/sessions/materialize"},
		{http.MethodGet, "/api/v1/sessions/export"},
		{http.MethodGet, "/api/v1/meetings"},
		{http.MethodGet, "/api/v1/enrollments"},
		{http.MethodGet, "/api/v1/profiles"},
		{http.MethodPut, "/api/v1/profiles/student-2/matching"},
	}
	for _, route := range routes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s anonymous", route.method, route.path)

		rec = httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer student")
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as student", route.method, route.path)
	}
}
