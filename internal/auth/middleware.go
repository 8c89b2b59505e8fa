package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"go.uber.org/zap"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	tokens *TokenManager
	apiKey string
	logger *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(tokens *TokenManager, apiKey string, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		apiKey: apiKey,
		logger: logger,
	}
}

// Authenticate accepts either a Bearer session token or the system API key.
// API key callers must name the tenant they act for in X-Tenant-ID.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				unauthorized(w, "Unauthorized")
				return
			}

			tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
			if err != nil {
				unauthorized(w, "Unauthorized: X-Tenant-ID header is required with an API key")
				return
			}

			userCtx := &UserContext{
				UserID:   SystemUserID,
				Name:     "System",
				Email:    "system@crm.local",
				TenantID: tenantID,
				Role:     domain.RoleOwner,
				System:   true,
			}

			m.logger.Info("request authenticated",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.String("tenant_id", tenantID.String()),
				zap.Duration("auth_duration", time.Since(start)),
			)

			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Unauthorized: missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "Unauthorized: invalid authorization header format")
			return
		}

		userCtx, err := m.tokens.Validate(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			unauthorized(w, "Unauthorized: "+err.Error())
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("tenant_id", userCtx.TenantID.String()),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireRole lets the request through only when the user's role is at least min
func (m *Middleware) RequireRole(min domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusForbidden, domain.ErrorTypeForbidden, "Forbidden: no user context")
				return
			}
			if !userCtx.HasRole(min) {
				writeError(w, http.StatusForbidden, domain.ErrorTypeForbidden, "Forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, domain.ErrorTypeUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Message: message,
		Type:    errType,
		Status:  status,
	})
}
