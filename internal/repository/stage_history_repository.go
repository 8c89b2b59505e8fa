package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
)

type StageHistoryRepository struct {
	db *gorm.DB
}

func NewStageHistoryRepository(db *gorm.DB) *StageHistoryRepository {
	return &StageHistoryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *StageHistoryRepository) WithTx(tx *gorm.DB) *StageHistoryRepository {
	return &StageHistoryRepository{db: tx}
}

// Create records a new stage transition
func (r *StageHistoryRepository) Create(ctx context.Context, history *domain.OpportunityStageHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// ListByOpportunity returns the stage history of an opportunity, most recent first
func (r *StageHistoryRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]domain.OpportunityStageHistory, error) {
	var history []domain.OpportunityStageHistory
	err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}
