package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/mapper"
	"github.com/salescrm/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SellerService struct {
	sellerRepo *repository.SellerRepository
	logger     *zap.Logger
}

func NewSellerService(sellerRepo *repository.SellerRepository, logger *zap.Logger) *SellerService {
	return &SellerService{
		sellerRepo: sellerRepo,
		logger:     logger,
	}
}

func (s *SellerService) Create(ctx context.Context, req *domain.CreateSellerRequest) (*domain.SellerDTO, error) {
	tenantID, err := repository.TenantFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, invalid("name", "name is required")
	}

	exists, err := s.sellerRepo.EmailExists(ctx, email, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check seller email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: a seller with this email already exists", ErrConflict)
	}

	seller := &domain.Seller{
		TenantID: tenantID,
		Name:     name,
		Email:    email,
	}
	if err := s.sellerRepo.Create(ctx, seller); err != nil {
		return nil, fmt.Errorf("failed to create seller: %w", err)
	}

	s.logger.Info("seller created", zap.String("seller_id", seller.ID.String()))

	dto := mapper.ToSellerDTO(seller)
	return &dto, nil
}

func (s *SellerService) GetByID(ctx context.Context, id uuid.UUID) (*domain.SellerDTO, error) {
	seller, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToSellerDTO(seller)
	return &dto, nil
}

func (s *SellerService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateSellerRequest) (*domain.SellerDTO, error) {
	seller, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name", "name is required")
		}
		seller.Name = name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		exists, err := s.sellerRepo.EmailExists(ctx, email, &seller.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check seller email: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: a seller with this email already exists", ErrConflict)
		}
		seller.Email = email
	}

	if err := s.sellerRepo.Update(ctx, seller); err != nil {
		return nil, fmt.Errorf("failed to update seller: %w", err)
	}

	dto := mapper.ToSellerDTO(seller)
	return &dto, nil
}

// Delete removes a seller that no customer or opportunity is attributed to
func (s *SellerService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	customers, err := s.sellerRepo.CountCustomers(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count customers: %w", err)
	}
	opportunities, err := s.sellerRepo.CountOpportunities(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count opportunities: %w", err)
	}
	if customers > 0 || opportunities > 0 {
		return fmt.Errorf("%w: seller has %d customers and %d opportunities", ErrConflict, customers, opportunities)
	}

	if err := s.sellerRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete seller: %w", err)
	}

	s.logger.Info("seller deleted", zap.String("seller_id", id.String()))
	return nil
}

func (s *SellerService) List(ctx context.Context) ([]domain.SellerDTO, error) {
	sellers, err := s.sellerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}

	dtos := make([]domain.SellerDTO, len(sellers))
	for i := range sellers {
		dtos[i] = mapper.ToSellerDTO(&sellers[i])
	}
	return dtos, nil
}

func (s *SellerService) get(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	seller, err := s.sellerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return seller, nil
}
