// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/database"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB returns a migrated in-memory SQLite database private to t
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateTestTenant creates a tenant with a unique slug
func CreateTestTenant(t *testing.T, db *gorm.DB, name string) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{
		Name: name,
		Slug: fmt.Sprintf("test-%s", uuid.NewString()[:8]),
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// CreateTestUser creates a user of tenant with the given role; the password is "secret1"
func CreateTestUser(t *testing.T, db *gorm.DB, tenant *domain.Tenant, role domain.UserRole) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	user := &domain.User{
		TenantID:     tenant.ID,
		Name:         "Test User",
		Email:        fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8]),
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestSeller creates a seller of tenant
func CreateTestSeller(t *testing.T, db *gorm.DB, tenant *domain.Tenant, name string) *domain.Seller {
	t.Helper()
	seller := &domain.Seller{
		TenantID: tenant.ID,
		Name:     name,
		Email:    fmt.Sprintf("seller-%s@example.com", uuid.NewString()[:8]),
	}
	require.NoError(t, db.Create(seller).Error)
	return seller
}

// CreateTestProduct creates a product of tenant
func CreateTestProduct(t *testing.T, db *gorm.DB, tenant *domain.Tenant, name string, price float64) *domain.Product {
	t.Helper()
	product := &domain.Product{
		TenantID: tenant.ID,
		Name:     name,
		Price:    price,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// CreateTestCustomer creates a customer of tenant, attributed to seller when not nil
func CreateTestCustomer(t *testing.T, db *gorm.DB, tenant *domain.Tenant, seller *domain.Seller, name string) *domain.Customer {
	t.Helper()
	customer := &domain.Customer{
		TenantID: tenant.ID,
		Name:     name,
		Email:    fmt.Sprintf("customer-%s@example.com", uuid.NewString()[:8]),
	}
	if seller != nil {
		customer.SellerID = &seller.ID
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

// CreateTestOpportunity creates an opportunity in stage with the given total and creation time
func CreateTestOpportunity(t *testing.T, db *gorm.DB, customer *domain.Customer, seller *domain.Seller, stage domain.OpportunityStage, total float64, createdAt time.Time) *domain.Opportunity {
	t.Helper()
	opp := &domain.Opportunity{
		TenantID:   customer.TenantID,
		CustomerID: customer.ID,
		Stage:      stage,
		TotalValue: total,
		ClosedAt:   domain.ClosedAtFor(stage, createdAt),
	}
	opp.CreatedAt = createdAt.UTC()
	opp.UpdatedAt = createdAt.UTC()
	if seller != nil {
		opp.SellerID = &seller.ID
	}
	require.NoError(t, db.Create(opp).Error)
	return opp
}

// AddTestItem adds a product line to opp
func AddTestItem(t *testing.T, db *gorm.DB, opp *domain.Opportunity, product *domain.Product, quantity int, unitPrice float64) *domain.OpportunityItem {
	t.Helper()
	item := &domain.OpportunityItem{
		OpportunityID: opp.ID,
		ProductID:     product.ID,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// ContextFor returns a context authenticated as user
func ContextFor(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		TenantID: user.TenantID,
		Role:     user.Role,
	})
}

// TenantContext returns a context of an owner of tenant
func TenantContext(tenant *domain.Tenant) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:   uuid.New(),
		Name:     "Test Owner",
		Email:    "owner@example.com",
		TenantID: tenant.ID,
		Role:     domain.RoleOwner,
	})
}
