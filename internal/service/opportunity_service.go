package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/mapper"
	"github.com/salescrm/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpportunityService owns the pipeline state machine. It keeps closed_at in step
// with the stage, recomputes totals from the line items and records stage history.
type OpportunityService struct {
	opportunityRepo *repository.OpportunityRepository
	customerRepo    *repository.CustomerRepository
	sellerRepo      *repository.SellerRepository
	productRepo     *repository.ProductRepository
	historyRepo     *repository.StageHistoryRepository
	logger          *zap.Logger
	now             func() time.Time
}

func NewOpportunityService(
	opportunityRepo *repository.OpportunityRepository,
	customerRepo *repository.CustomerRepository,
	sellerRepo *repository.SellerRepository,
	productRepo *repository.ProductRepository,
	historyRepo *repository.StageHistoryRepository,
	logger *zap.Logger,
) *OpportunityService {
	return &OpportunityService{
		opportunityRepo: opportunityRepo,
		customerRepo:    customerRepo,
		sellerRepo:      sellerRepo,
		productRepo:     productRepo,
		historyRepo:     historyRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock returns a copy of the service that reads the current time from now
func (s *OpportunityService) WithClock(now func() time.Time) *OpportunityService {
	clone := *s
	clone.now = now
	return &clone
}

// List returns the tenant's opportunities matching filters, newest first
func (s *OpportunityService) List(ctx context.Context, filters *domain.OpportunityFilters) ([]domain.OpportunityDTO, error) {
	if filters != nil && filters.Stage != nil && !filters.Stage.IsValid() {
		return nil, ErrInvalidStage
	}

	opps, err := s.opportunityRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	return mapper.ToOpportunityDTOs(opps), nil
}

func (s *OpportunityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.OpportunityDTO, error) {
	opp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToOpportunityDTO(opp)
	return &dto, nil
}

// Create validates the references, computes the total and writes the opportunity,
// its items and the initial history row in one transaction
func (s *OpportunityService) Create(ctx context.Context, req *domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	tenantID, err := repository.TenantFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if req.CustomerID == uuid.Nil {
		return nil, invalid("customerId", "customer is required")
	}
	if err := s.checkCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if req.SellerID != nil {
		if err := s.checkSeller(ctx, *req.SellerID); err != nil {
			return nil, err
		}
	}

	stage := domain.StageFirstContact
	if req.Stage != nil {
		if !req.Stage.IsValid() {
			return nil, ErrInvalidStage
		}
		stage = *req.Stage
	}

	items, err := s.buildItems(ctx, req.Products)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	opp := &domain.Opportunity{
		TenantID:   tenantID,
		CustomerID: req.CustomerID,
		SellerID:   req.SellerID,
		Stage:      stage,
		TotalValue: domain.CalculateTotal(items),
		Notes:      trimmedNotes(req.Notes),
		ClosedAt:   domain.ClosedAtFor(stage, now),
	}

	err = s.opportunityRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		repo := s.opportunityRepo.WithTx(tx)
		if err := repo.Create(ctx, opp); err != nil {
			return fmt.Errorf("failed to create opportunity: %w", err)
		}
		if err := repo.ReplaceItems(ctx, opp.ID, items); err != nil {
			return fmt.Errorf("failed to create opportunity items: %w", err)
		}
		return s.recordStage(ctx, tx, opp.ID, nil, stage, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("opportunity created",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("stage", string(stage)),
		zap.Float64("total_value", opp.TotalValue),
	)

	return s.GetByID(ctx, opp.ID)
}

// Update changes the fields present in req. Replacing products recomputes the total;
// a stage change keeps closed_at in step and is recorded in the history.
func (s *OpportunityService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error) {
	opp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil {
		if err := s.checkCustomer(ctx, *req.CustomerID); err != nil {
			return nil, err
		}
		opp.CustomerID = *req.CustomerID
	}

	if req.ClearSeller {
		opp.SellerID = nil
	} else if req.SellerID != nil {
		if err := s.checkSeller(ctx, *req.SellerID); err != nil {
			return nil, err
		}
		sellerID := *req.SellerID
		opp.SellerID = &sellerID
	}

	if req.Notes != nil {
		opp.Notes = trimmedNotes(req.Notes)
	}

	now := s.now().UTC()
	previous := opp.Stage
	stageChanged := false
	if req.Stage != nil {
		if !req.Stage.IsValid() {
			return nil, ErrInvalidStage
		}
		if *req.Stage != opp.Stage {
			stageChanged = true
			opp.Stage = *req.Stage
			opp.ClosedAt = domain.ClosedAtFor(opp.Stage, now)
		}
	}

	var items []domain.OpportunityItem
	if req.Products != nil {
		items, err = s.buildItems(ctx, *req.Products)
		if err != nil {
			return nil, err
		}
		opp.TotalValue = domain.CalculateTotal(items)
	}

	opp.Customer = nil
	opp.Seller = nil
	opp.Items = nil

	err = s.opportunityRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		repo := s.opportunityRepo.WithTx(tx)
		if err := repo.Update(ctx, opp); err != nil {
			return fmt.Errorf("failed to update opportunity: %w", err)
		}
		if req.Products != nil {
			if err := repo.ReplaceItems(ctx, opp.ID, items); err != nil {
				return fmt.Errorf("failed to replace opportunity items: %w", err)
			}
		}
		if stageChanged {
			return s.recordStage(ctx, tx, opp.ID, &previous, opp.Stage, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, opp.ID)
}

// Move sets the stage of an opportunity. Terminal stages stamp closed_at with the
// current time, other stages clear it. Moving to the current stage changes nothing.
func (s *OpportunityService) Move(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
	if !stage.IsValid() {
		return nil, ErrInvalidStage
	}

	opp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp.Stage == stage {
		dto := mapper.ToOpportunityDTO(opp)
		return &dto, nil
	}

	now := s.now().UTC()
	previous := opp.Stage
	closedAt := domain.ClosedAtFor(stage, now)

	err = s.opportunityRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.opportunityRepo.WithTx(tx).UpdateStage(ctx, id, stage, closedAt); err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}
		return s.recordStage(ctx, tx, id, &previous, stage, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("opportunity moved",
		zap.String("opportunity_id", id.String()),
		zap.String("from_stage", string(previous)),
		zap.String("to_stage", string(stage)),
	)

	return s.GetByID(ctx, id)
}

// Delete removes the opportunity with its items and history
func (s *OpportunityService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.opportunityRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}

	s.logger.Info("opportunity deleted", zap.String("opportunity_id", id.String()))
	return nil
}

// History returns the stage changes of an opportunity, most recent first
func (s *OpportunityService) History(ctx context.Context, id uuid.UUID) ([]domain.StageHistoryDTO, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.historyRepo.ListByOpportunity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage history: %w", err)
	}

	dtos := make([]domain.StageHistoryDTO, len(rows))
	for i := range rows {
		dtos[i] = mapper.ToStageHistoryDTO(&rows[i])
	}
	return dtos, nil
}

func (s *OpportunityService) get(ctx context.Context, id uuid.UUID) (*domain.Opportunity, error) {
	opp, err := s.opportunityRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return opp, nil
}

func (s *OpportunityService) checkCustomer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.customerRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to get customer: %w", err)
	}
	return nil
}

func (s *OpportunityService) checkSeller(ctx context.Context, id uuid.UUID) error {
	if _, err := s.sellerRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSellerNotFound
		}
		return fmt.Errorf("failed to get seller: %w", err)
	}
	return nil
}

// buildItems validates product lines and resolves their products within the tenant
func (s *OpportunityService) buildItems(ctx context.Context, inputs []domain.OpportunityItemInput) ([]domain.OpportunityItem, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(inputs))
	for i, in := range inputs {
		if in.ProductID == uuid.Nil {
			return nil, invalid(fmt.Sprintf("products[%d].productId", i), "product is required")
		}
		if in.UnitPrice == nil || *in.UnitPrice < 0 {
			return nil, invalid(fmt.Sprintf("products[%d].unitPrice", i), "unit price must be zero or greater")
		}
		if in.Quantity != nil && *in.Quantity < 1 {
			return nil, invalid(fmt.Sprintf("products[%d].quantity", i), "quantity must be at least 1")
		}
		ids = append(ids, in.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	items := make([]domain.OpportunityItem, len(inputs))
	for i, in := range inputs {
		if _, ok := products[in.ProductID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, in.ProductID)
		}
		quantity := 1
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		items[i] = domain.OpportunityItem{
			ProductID: in.ProductID,
			Quantity:  quantity,
			UnitPrice: *in.UnitPrice,
		}
	}
	return items, nil
}

func (s *OpportunityService) recordStage(ctx context.Context, tx *gorm.DB, oppID uuid.UUID, from *domain.OpportunityStage, to domain.OpportunityStage, at time.Time) error {
	history := &domain.OpportunityStageHistory{
		OpportunityID: oppID,
		FromStage:     from,
		ToStage:       to,
		ChangedAt:     at,
	}
	if userCtx, ok := auth.FromContext(ctx); ok {
		history.ChangedByID = userCtx.UserID.String()
		history.ChangedByName = userCtx.Name
	} else {
		history.ChangedByID = auth.SystemUserID.String()
		history.ChangedByName = "System"
	}

	if err := s.historyRepo.WithTx(tx).Create(ctx, history); err != nil {
		return fmt.Errorf("failed to record stage history: %w", err)
	}
	return nil
}

// trimmedNotes trims notes; blank notes become NULL
func trimmedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	return optional(strings.TrimSpace(*notes))
}
