package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	if err := query.First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByIDs returns the products of the current tenant among ids, keyed by id
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	out := make(map[uuid.UUID]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []domain.Product
	query := r.db.WithContext(ctx).Where("id IN ?", ids)
	query = ApplyTenantFilter(ctx, query)
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	return query.Delete(&domain.Product{}).Error
}

// List returns the products of the current tenant ordered by name
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	query := r.db.WithContext(ctx).Model(&domain.Product{})
	query = ApplyTenantFilter(ctx, query)
	err := query.Order("name ASC").Find(&products).Error
	return products, err
}

// CodeExists reports whether another product of the tenant uses code
func (r *ProductRepository) CodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Product{}).Where("code = ?", code)
	query = ApplyTenantFilter(ctx, query)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// CountItems returns how many opportunity lines reference the product
func (r *ProductRepository) CountItems(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.OpportunityItem{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}
