package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/mapper"
	"github.com/salescrm/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	zipCodePattern  = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	whatsAppPattern = regexp.MustCompile(`^(\+55\s?)?(\(?\d{2}\)?[\s-]?)?\d{4,5}[\s-]?\d{4}$`)
	statePattern    = regexp.MustCompile(`^[A-Z]{2}$`)
	nonDigits       = regexp.MustCompile(`\D`)

	minBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
)

type CustomerService struct {
	customerRepo *repository.CustomerRepository
	sellerRepo   *repository.SellerRepository
	logger       *zap.Logger
	now          func() time.Time
}

func NewCustomerService(
	customerRepo *repository.CustomerRepository,
	sellerRepo *repository.SellerRepository,
	logger *zap.Logger,
) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		sellerRepo:   sellerRepo,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *CustomerService) Create(ctx context.Context, input *domain.CustomerInput) (*domain.CustomerDTO, error) {
	tenantID, err := repository.TenantFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, invalid("name", "name is required")
	}
	if input.Email == nil || strings.TrimSpace(*input.Email) == "" {
		return nil, invalid("email", "email is required")
	}

	customer := &domain.Customer{TenantID: tenantID}
	if err := s.apply(ctx, customer, input); err != nil {
		return nil, err
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("customer created", zap.String("customer_id", customer.ID.String()))

	return s.reload(ctx, customer.ID)
}

func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerDTO, error) {
	customer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToCustomerDTO(customer)
	return &dto, nil
}

// Update changes the fields present in input; an empty optional field is cleared
func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, input *domain.CustomerInput) (*domain.CustomerDTO, error) {
	customer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, customer, input); err != nil {
		return nil, err
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	return s.reload(ctx, customer.ID)
}

// Delete removes a customer without opportunities
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	count, err := s.customerRepo.CountOpportunities(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count opportunities: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: customer has %d opportunities", ErrConflict, count)
	}

	if err := s.customerRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	s.logger.Info("customer deleted", zap.String("customer_id", id.String()))
	return nil
}

// List returns the tenant's customers alphabetically, optionally filtered by search text and seller
func (s *CustomerService) List(ctx context.Context, search string, sellerID *uuid.UUID) ([]domain.CustomerDTO, error) {
	customers, err := s.customerRepo.List(ctx, repository.CustomerFilters{
		Search:   search,
		SellerID: sellerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	dtos := make([]domain.CustomerDTO, len(customers))
	for i := range customers {
		dtos[i] = mapper.ToCustomerDTO(&customers[i])
	}
	return dtos, nil
}

// apply validates and normalizes every field present in input onto customer
func (s *CustomerService) apply(ctx context.Context, customer *domain.Customer, input *domain.CustomerInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len(name) < 2 {
			return invalid("name", "name must have at least 2 characters")
		}
		if len(name) > 255 {
			return invalid("name", "name must have at most 255 characters")
		}
		customer.Name = name
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return invalid("email", "email is required")
		}
		if len(email) > 255 {
			return invalid("email", "email must have at most 255 characters")
		}
		if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
			return invalid("email", "invalid email")
		}
		var excludeID *uuid.UUID
		if customer.ID != uuid.Nil {
			excludeID = &customer.ID
		}
		exists, err := s.customerRepo.EmailExists(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check customer email: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: a customer with this email already exists", ErrConflict)
		}
		customer.Email = email
	}

	if input.WhatsApp != nil {
		whatsApp := strings.TrimSpace(*input.WhatsApp)
		if len(whatsApp) > 20 {
			return invalid("whatsapp", "whatsapp must have at most 20 characters")
		}
		if whatsApp != "" && !whatsAppPattern.MatchString(whatsApp) {
			return invalid("whatsapp", "invalid whatsapp, use the format (11) 99999-9999")
		}
		customer.WhatsApp = optional(whatsApp)
	}

	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if len(address) > 500 {
			return invalid("address", "address must have at most 500 characters")
		}
		customer.Address = optional(address)
	}

	if input.City != nil {
		city := strings.TrimSpace(*input.City)
		if len(city) > 100 {
			return invalid("city", "city must have at most 100 characters")
		}
		customer.City = optional(city)
	}

	if input.State != nil {
		state := strings.ToUpper(strings.TrimSpace(*input.State))
		if state != "" && !statePattern.MatchString(state) {
			return invalid("state", "state must be a 2 letter abbreviation")
		}
		customer.State = optional(state)
	}

	if input.ZipCode != nil {
		zip := strings.TrimSpace(*input.ZipCode)
		if zip != "" && !zipCodePattern.MatchString(zip) {
			return invalid("zipCode", "invalid zip code, use the format 00000-000 or 00000000")
		}
		customer.ZipCode = optional(nonDigits.ReplaceAllString(zip, ""))
	}

	if input.BirthDate != nil {
		birthDate, err := s.parseBirthDate(*input.BirthDate)
		if err != nil {
			return err
		}
		customer.BirthDate = birthDate
	}

	if input.ClearSeller {
		customer.SellerID = nil
		customer.Seller = nil
	} else if input.SellerID != nil {
		if _, err := s.sellerRepo.GetByID(ctx, *input.SellerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSellerNotFound
			}
			return fmt.Errorf("failed to get seller: %w", err)
		}
		sellerID := *input.SellerID
		customer.SellerID = &sellerID
		customer.Seller = nil
	}

	return nil
}

func (s *CustomerService) parseBirthDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	date, err := time.Parse(mapper.DateFormat, raw)
	if err != nil {
		date, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, invalid("birthDate", "invalid birth date")
		}
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	}

	if date.Before(minBirthDate) {
		return nil, invalid("birthDate", "invalid birth date")
	}
	if date.After(s.now().UTC()) {
		return nil, invalid("birthDate", "birth date cannot be in the future")
	}
	return &date, nil
}

func (s *CustomerService) get(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

// reload reads the customer back so the seller is embedded in the response
func (s *CustomerService) reload(ctx context.Context, id uuid.UUID) (*domain.CustomerDTO, error) {
	customer, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToCustomerDTO(customer)
	return &dto, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
