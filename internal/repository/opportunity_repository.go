package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OpportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *OpportunityRepository) WithTx(tx *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: tx}
}

// WithTransaction executes fn within a transaction
func (r *OpportunityRepository) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create inserts the opportunity without its associations; items are written with ReplaceItems
func (r *OpportunityRepository) Create(ctx context.Context, opp *domain.Opportunity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(opp).Error
}

// GetByID returns an opportunity of the current tenant with customer, seller and items resolved
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	query := r.withAssociations(r.db.WithContext(ctx)).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	if err := query.First(&opp).Error; err != nil {
		return nil, err
	}
	return &opp, nil
}

// Update writes the opportunity columns; associations are left untouched
func (r *OpportunityRepository) Update(ctx context.Context, opp *domain.Opportunity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(opp).Error
}

// UpdateStage sets stage and closed_at of an opportunity of the current tenant
func (r *OpportunityRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage, closedAt *time.Time) error {
	query := r.db.WithContext(ctx).Model(&domain.Opportunity{}).Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	return query.Updates(map[string]interface{}{
		"stage":     stage,
		"closed_at": closedAt,
	}).Error
}

// Delete removes the opportunity together with its items and stage history
func (r *OpportunityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		query = ApplyTenantFilter(ctx, query)
		result := query.Delete(&domain.Opportunity{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("opportunity_id = ?", id).Delete(&domain.OpportunityItem{}).Error; err != nil {
			return err
		}
		return tx.Where("opportunity_id = ?", id).Delete(&domain.OpportunityStageHistory{}).Error
	})
}

// ReplaceItems deletes the current lines of the opportunity and inserts items
func (r *OpportunityRepository) ReplaceItems(ctx context.Context, opportunityID uuid.UUID, items []domain.OpportunityItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("opportunity_id = ?", opportunityID).Delete(&domain.OpportunityItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OpportunityID = opportunityID
	}
	return db.Omit(clause.Associations).Create(&items).Error
}

// List returns the opportunities of the current tenant matching filters, newest first
func (r *OpportunityRepository) List(ctx context.Context, filters *domain.OpportunityFilters) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity

	query := r.withAssociations(r.db.WithContext(ctx).Model(&domain.Opportunity{}))
	query = ApplyTenantFilter(ctx, query)
	query = r.applyFilters(query, filters)

	err := query.Order("created_at DESC").Find(&opps).Error
	return opps, err
}

func (r *OpportunityRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Customer").
		Preload("Seller").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Items.Product")
}

// applyFilters applies all filter criteria to the query
func (r *OpportunityRepository) applyFilters(query *gorm.DB, filters *domain.OpportunityFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.SellerID != nil {
		query = query.Where("seller_id = ?", *filters.SellerID)
	}
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.CreatedFrom != nil {
		query = query.Where("created_at >= ?", filters.CreatedFrom.UTC())
	}
	if filters.ClosedFrom != nil {
		query = query.Where("closed_at >= ?", filters.ClosedFrom.UTC())
	}
	return query
}
