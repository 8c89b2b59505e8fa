package mapper

import (
	"github.com/salescrm/crm-api/internal/domain"
)

// DateFormat is the wire format of calendar dates such as birth dates
const DateFormat = "2006-01-02"

// ToTenantDTO converts Tenant to TenantDTO
func ToTenantDTO(tenant *domain.Tenant) domain.TenantDTO {
	return domain.TenantDTO{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Slug:      tenant.Slug,
		CreatedAt: tenant.CreatedAt,
	}
}

// ToUserDTO converts User to UserDTO; the password hash never leaves the service layer
func ToUserDTO(user *domain.User) domain.UserDTO {
	return domain.UserDTO{
		ID:        user.ID,
		TenantID:  user.TenantID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// ToSellerDTO converts Seller to SellerDTO
func ToSellerDTO(seller *domain.Seller) domain.SellerDTO {
	return domain.SellerDTO{
		ID:        seller.ID,
		TenantID:  seller.TenantID,
		Name:      seller.Name,
		Email:     seller.Email,
		CreatedAt: seller.CreatedAt,
		UpdatedAt: seller.UpdatedAt,
	}
}

// ToProductDTO converts Product to ProductDTO
func ToProductDTO(product *domain.Product) domain.ProductDTO {
	return domain.ProductDTO{
		ID:        product.ID,
		TenantID:  product.TenantID,
		Name:      product.Name,
		Code:      product.Code,
		Price:     product.Price,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}

// ToCustomerDTO converts Customer to CustomerDTO, embedding the seller when it was loaded
func ToCustomerDTO(customer *domain.Customer) domain.CustomerDTO {
	dto := domain.CustomerDTO{
		ID:        customer.ID,
		TenantID:  customer.TenantID,
		SellerID:  customer.SellerID,
		Name:      customer.Name,
		Email:     customer.Email,
		WhatsApp:  customer.WhatsApp,
		Address:   customer.Address,
		City:      customer.City,
		State:     customer.State,
		ZipCode:   customer.ZipCode,
		CreatedAt: customer.CreatedAt,
		UpdatedAt: customer.UpdatedAt,
	}
	if customer.BirthDate != nil {
		formatted := customer.BirthDate.Format(DateFormat)
		dto.BirthDate = &formatted
	}
	if customer.Seller != nil {
		seller := ToSellerDTO(customer.Seller)
		dto.Seller = &seller
	}
	return dto
}

// ToOpportunityDTO converts Opportunity to OpportunityDTO.
// Products is never nil so clients always receive an array.
func ToOpportunityDTO(opp *domain.Opportunity) domain.OpportunityDTO {
	dto := domain.OpportunityDTO{
		ID:         opp.ID,
		TenantID:   opp.TenantID,
		CustomerID: opp.CustomerID,
		SellerID:   opp.SellerID,
		Stage:      opp.Stage,
		TotalValue: opp.TotalValue,
		Notes:      opp.Notes,
		CreatedAt:  opp.CreatedAt,
		UpdatedAt:  opp.UpdatedAt,
		ClosedAt:   opp.ClosedAt,
		Products:   make([]domain.OpportunityItemDTO, 0, len(opp.Items)),
	}

	if opp.Customer != nil {
		dto.Customer = &domain.OpportunityCustomerDTO{
			ID:       opp.Customer.ID,
			Name:     opp.Customer.Name,
			Email:    opp.Customer.Email,
			WhatsApp: opp.Customer.WhatsApp,
		}
	}
	if opp.Seller != nil {
		dto.Seller = &domain.OpportunitySellerDTO{
			ID:    opp.Seller.ID,
			Name:  opp.Seller.Name,
			Email: opp.Seller.Email,
		}
	}

	for _, item := range opp.Items {
		dto.Products = append(dto.Products, ToOpportunityItemDTO(&item))
	}
	return dto
}

// ToOpportunityItemDTO converts OpportunityItem to OpportunityItemDTO
func ToOpportunityItemDTO(item *domain.OpportunityItem) domain.OpportunityItemDTO {
	dto := domain.OpportunityItemDTO{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
	}
	if item.Product != nil {
		dto.Product = &domain.OpportunityProductDTO{
			ID:    item.Product.ID,
			Name:  item.Product.Name,
			Code:  item.Product.Code,
			Price: item.Product.Price,
		}
	}
	return dto
}

// ToOpportunityDTOs converts a slice of opportunities
func ToOpportunityDTOs(opps []domain.Opportunity) []domain.OpportunityDTO {
	dtos := make([]domain.OpportunityDTO, len(opps))
	for i := range opps {
		dtos[i] = ToOpportunityDTO(&opps[i])
	}
	return dtos
}

// ToStageHistoryDTO converts OpportunityStageHistory to StageHistoryDTO
func ToStageHistoryDTO(h *domain.OpportunityStageHistory) domain.StageHistoryDTO {
	return domain.StageHistoryDTO{
		ID:            h.ID,
		OpportunityID: h.OpportunityID,
		FromStage:     h.FromStage,
		ToStage:       h.ToStage,
		ChangedByID:   h.ChangedByID,
		ChangedByName: h.ChangedByName,
		ChangedAt:     h.ChangedAt,
	}
}
