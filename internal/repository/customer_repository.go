package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
)

// CustomerFilters narrows a customer listing
type CustomerFilters struct {
	Search   string
	SellerID *uuid.UUID
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Omit("Seller").Create(customer).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	query := r.db.WithContext(ctx).Preload("Seller").Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	if err := query.First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Omit("Seller").Save(customer).Error
}

func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	return query.Delete(&domain.Customer{}).Error
}

// List returns the customers of the current tenant in alphabetical order.
// Search matches name or email case-insensitively.
func (r *CustomerRepository) List(ctx context.Context, filters CustomerFilters) ([]domain.Customer, error) {
	var customers []domain.Customer

	query := r.db.WithContext(ctx).Model(&domain.Customer{}).Preload("Seller")
	query = ApplyTenantFilter(ctx, query)

	if search := strings.TrimSpace(filters.Search); search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", searchPattern, searchPattern)
	}
	if filters.SellerID != nil {
		query = query.Where("seller_id = ?", *filters.SellerID)
	}

	err := query.Order("name ASC").Find(&customers).Error
	return customers, err
}

// EmailExists reports whether another customer of the tenant uses email
func (r *CustomerRepository) EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Customer{}).Where("email = ?", email)
	query = ApplyTenantFilter(ctx, query)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// CountOpportunities returns how many opportunities belong to the customer
func (r *CustomerRepository) CountOpportunities(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Opportunity{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}
