package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"gorm.io/gorm"
)

// ApplyTenantFilter scopes query to the tenant of the request.
// Without a tenant in ctx the query matches nothing.
func ApplyTenantFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	return ApplyTenantFilterWithColumn(ctx, query, "tenant_id")
}

// ApplyTenantFilterWithColumn applies the tenant filter to a specific, possibly table-qualified, column
func ApplyTenantFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	tenantID, ok := auth.TenantID(ctx)
	if !ok {
		return query.Where("1 = 0")
	}
	return query.Where(columnName+" = ?", tenantID)
}

// TenantFromContext returns the tenant of the request, or an error when the request is not scoped
func TenantFromContext(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := auth.TenantID(ctx)
	if !ok {
		return uuid.Nil, ErrNoTenant
	}
	return tenantID, nil
}
