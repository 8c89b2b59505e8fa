package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
)

// SystemUserID identifies requests authenticated with the system API key
var SystemUserID = uuid.Nil

// UserContext holds the authenticated user and the tenant every query is scoped to
type UserContext struct {
	UserID   uuid.UUID
	Name     string
	Email    string
	TenantID uuid.UUID
	Role     domain.UserRole
	// System is true for API key callers
	System bool
}

type contextKey string

const userContextKey contextKey = "userContext"
const tenantFilterKey contextKey = "tenantFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasRole reports whether the user's role is at least min
func (u *UserContext) HasRole(min domain.UserRole) bool {
	return u.System || u.Role.AtLeast(min)
}

// IsAdmin checks if user can manage their tenant
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(domain.RoleAdmin)
}

// TenantFilter is the tenant scope resolved by middleware for the current request
type TenantFilter struct {
	TenantID uuid.UUID
}

// WithTenantFilter adds tenant filter to the context
func WithTenantFilter(ctx context.Context, filter *TenantFilter) context.Context {
	return context.WithValue(ctx, tenantFilterKey, filter)
}

// TenantFilterFromContext extracts tenant filter from the context
func TenantFilterFromContext(ctx context.Context) (*TenantFilter, bool) {
	filter, ok := ctx.Value(tenantFilterKey).(*TenantFilter)
	return filter, ok
}

// TenantID returns the tenant the request is scoped to. An explicit filter set by
// middleware wins over the user's own tenant. ok is false when neither is present.
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	if filter, ok := TenantFilterFromContext(ctx); ok && filter != nil && filter.TenantID != uuid.Nil {
		return filter.TenantID, true
	}
	if user, ok := FromContext(ctx); ok && user.TenantID != uuid.Nil {
		return user.TenantID, true
	}
	return uuid.Nil, false
}
