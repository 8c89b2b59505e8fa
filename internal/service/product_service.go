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

type ProductService struct {
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

func NewProductService(productRepo *repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		logger:      logger,
	}
}

func (s *ProductService) Create(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductDTO, error) {
	tenantID, err := repository.TenantFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, invalid("price", "price must be zero or greater")
	}

	code := normalizeCode(req.Code)
	if err := s.checkCode(ctx, code, nil); err != nil {
		return nil, err
	}

	product := &domain.Product{
		TenantID: tenantID,
		Name:     name,
		Code:     code,
		Price:    *req.Price,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", product.ID.String()))

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductDTO, error) {
	product, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

// Update changes the fields present in req. Prices of existing opportunity lines are not touched.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProductRequest) (*domain.ProductDTO, error) {
	product, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name", "name is required")
		}
		product.Name = name
	}
	if req.Code != nil {
		code := normalizeCode(req.Code)
		if err := s.checkCode(ctx, code, &product.ID); err != nil {
			return nil, err
		}
		product.Code = code
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, invalid("price", "price must be zero or greater")
		}
		product.Price = *req.Price
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

// Delete removes a product no opportunity line references
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	items, err := s.productRepo.CountItems(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count opportunity items: %w", err)
	}
	if items > 0 {
		return fmt.Errorf("%w: product is used by %d opportunity items", ErrConflict, items)
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *ProductService) List(ctx context.Context) ([]domain.ProductDTO, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	dtos := make([]domain.ProductDTO, len(products))
	for i := range products {
		dtos[i] = mapper.ToProductDTO(&products[i])
	}
	return dtos, nil
}

func (s *ProductService) get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *ProductService) checkCode(ctx context.Context, code *string, excludeID *uuid.UUID) error {
	if code == nil {
		return nil
	}
	exists, err := s.productRepo.CodeExists(ctx, *code, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check product code: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: a product with this code already exists", ErrConflict)
	}
	return nil
}

// normalizeCode trims the code; blank codes are stored as NULL
func normalizeCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
