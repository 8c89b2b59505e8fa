package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantLookup resolves a tenant by ID
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
}

// TenantFilterMiddleware handles multi-tenant data isolation.
// Every authenticated request is pinned to exactly one tenant; repositories
// read the pinned tenant from the context and match nothing without it.
type TenantFilterMiddleware struct {
	tenants TenantLookup
	logger  *zap.Logger
}

// NewTenantFilterMiddleware creates a new tenant filter middleware
func NewTenantFilterMiddleware(tenants TenantLookup, logger *zap.Logger) *TenantFilterMiddleware {
	return &TenantFilterMiddleware{
		tenants: tenants,
		logger:  logger,
	}
}

// Filter sets the tenant filter of the request.
// - Session users are scoped to the tenant in their token
// - API key callers are scoped to X-Tenant-ID, which must name an existing tenant
func (m *TenantFilterMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok || userCtx.TenantID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "unauthorized: no tenant in request")
			return
		}

		if userCtx.System {
			if _, err := m.tenants.GetByID(r.Context(), userCtx.TenantID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					m.logger.Warn("api key request for unknown tenant",
						zap.String("tenant_id", userCtx.TenantID.String()),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusUnauthorized, "unauthorized: unknown tenant")
					return
				}
				m.logger.Error("failed to resolve tenant", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}

		recordCaller(r.Context(), userCtx)
		ctx := auth.WithTenantFilter(r.Context(), &auth.TenantFilter{TenantID: userCtx.TenantID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	errType := domain.ErrorTypeInternal
	switch status {
	case http.StatusUnauthorized:
		errType = domain.ErrorTypeUnauthorized
	case http.StatusTooManyRequests:
		errType = domain.ErrorTypeRateLimited
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Message: message,
		Type:    errType,
		Status:  status,
	})
}
