package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/salescrm/crm-api/internal/config"
	"github.com/salescrm/crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	cfg := &config.SecurityConfig{
		EnableHSTS:            true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		ContentSecurityPolicy: "default-src 'self'",
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
	h := middleware.SecurityHeaders(cfg)(okHandler())

	t.Run("api responses", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sellers", nil))

		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
		assert.Empty(t, w.Header().Get("X-XSS-Protection"))
		assert.Empty(t, w.Header().Get("Permissions-Policy"))
	})

	t.Run("swagger UI gets a relaxed policy", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'unsafe-inline'")
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	})
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	h := middleware.SecurityHeaders(&config.SecurityConfig{})(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))

	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("X-Content-Type-Options"))
}
