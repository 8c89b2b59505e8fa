package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
)

type SellerRepository struct {
	db *gorm.DB
}

func NewSellerRepository(db *gorm.DB) *SellerRepository {
	return &SellerRepository{db: db}
}

func (r *SellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

func (r *SellerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	var seller domain.Seller
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	if err := query.First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *SellerRepository) Update(ctx context.Context, seller *domain.Seller) error {
	return r.db.WithContext(ctx).Save(seller).Error
}

func (r *SellerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	return query.Delete(&domain.Seller{}).Error
}

// List returns the sellers of the current tenant ordered by name
func (r *SellerRepository) List(ctx context.Context) ([]domain.Seller, error) {
	var sellers []domain.Seller
	query := r.db.WithContext(ctx).Model(&domain.Seller{})
	query = ApplyTenantFilter(ctx, query)
	err := query.Order("name ASC").Find(&sellers).Error
	return sellers, err
}

// EmailExists reports whether another seller of the tenant uses email.
// excludeID skips the seller being updated.
func (r *SellerRepository) EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Seller{}).Where("LOWER(email) = ?", strings.ToLower(email))
	query = ApplyTenantFilter(ctx, query)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// CountCustomers returns how many customers are attributed to the seller
func (r *SellerRepository) CountCustomers(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Customer{}).Where("seller_id = ?", sellerID).Count(&count).Error
	return count, err
}

// CountOpportunities returns how many opportunities are attributed to the seller
func (r *SellerRepository) CountOpportunities(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Opportunity{}).Where("seller_id = ?", sellerID).Count(&count).Error
	return count, err
}
