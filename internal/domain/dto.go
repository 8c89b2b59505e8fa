package domain

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Auth
// ============================================================================

// RegisterRequest creates a tenant together with its owner account
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=200"`
	CompanyName     string `json:"companyName" validate:"required,min=2,max=200"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TenantDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
	Tenant    TenantDTO `json:"tenant"`
}

// ============================================================================
// Sellers
// ============================================================================

type SellerDTO struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type CreateSellerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// UpdateSellerRequest only changes the fields that are present
type UpdateSellerRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

// ============================================================================
// Products
// ============================================================================

type ProductDTO struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId,omitempty"`
	Name      string    `json:"name"`
	Code      *string   `json:"code"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type CreateProductRequest struct {
	Name  string   `json:"name" validate:"required,max=200"`
	Code  *string  `json:"code,omitempty" validate:"omitempty,max=100"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

// UpdateProductRequest only changes the fields that are present.
// An empty code clears it.
type UpdateProductRequest struct {
	Name  *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Code  *string  `json:"code,omitempty" validate:"omitempty,max=100"`
	Price *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// ============================================================================
// Customers
// ============================================================================

type CustomerDTO struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenantId,omitempty"`
	SellerID  *uuid.UUID `json:"sellerId,omitempty"`
	Seller    *SellerDTO `json:"seller,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	WhatsApp  *string    `json:"whatsapp"`
	Address   *string    `json:"address,omitempty"`
	City      *string    `json:"city,omitempty"`
	State     *string    `json:"state,omitempty"`
	ZipCode   *string    `json:"zipCode,omitempty"`
	BirthDate *string    `json:"birthDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

// CustomerInput carries customer fields for both create and update.
// Normalization and the Brazilian format rules live in the customer service.
type CustomerInput struct {
	Name      *string    `json:"name" validate:"omitempty,max=255"`
	Email     *string    `json:"email" validate:"omitempty,max=255"`
	WhatsApp  *string    `json:"whatsapp,omitempty" validate:"omitempty,max=20"`
	Address   *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	City      *string    `json:"city,omitempty" validate:"omitempty,max=100"`
	State     *string    `json:"state,omitempty"`
	ZipCode   *string    `json:"zipCode,omitempty"`
	BirthDate *string    `json:"birthDate,omitempty"`
	SellerID  *uuid.UUID `json:"sellerId,omitempty"`
	// ClearSeller is set by the handler when the body contains "sellerId": null
	ClearSeller bool `json:"-"`
}

// ============================================================================
// Opportunities
// ============================================================================

// OpportunityCustomerDTO is the customer summary embedded in an opportunity
type OpportunityCustomerDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	WhatsApp *string   `json:"whatsapp"`
}

// OpportunitySellerDTO is the seller summary embedded in an opportunity
type OpportunitySellerDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// OpportunityProductDTO is the product summary embedded in a line item
type OpportunityProductDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Code  *string   `json:"code"`
	Price float64   `json:"price"`
}

type OpportunityItemDTO struct {
	ID        uuid.UUID              `json:"id"`
	ProductID uuid.UUID              `json:"productId"`
	Quantity  int                    `json:"quantity"`
	UnitPrice float64                `json:"unitPrice"`
	Product   *OpportunityProductDTO `json:"product"`
}

// OpportunityDTO is the wire and aggregation shape of an opportunity
// with its associations resolved.
type OpportunityDTO struct {
	ID         uuid.UUID               `json:"id"`
	TenantID   uuid.UUID               `json:"tenantId"`
	CustomerID uuid.UUID               `json:"customerId"`
	SellerID   *uuid.UUID              `json:"sellerId"`
	Stage      OpportunityStage        `json:"stage"`
	TotalValue float64                 `json:"totalValue"`
	Notes      *string                 `json:"notes"`
	CreatedAt  time.Time               `json:"createdAt"`
	UpdatedAt  time.Time               `json:"updatedAt"`
	ClosedAt   *time.Time              `json:"closedAt"`
	Customer   *OpportunityCustomerDTO `json:"customer"`
	Seller     *OpportunitySellerDTO   `json:"seller"`
	Products   []OpportunityItemDTO    `json:"products"`
}

// Clone returns a deep copy, so callers can keep a snapshot while the original changes
func (o OpportunityDTO) Clone() OpportunityDTO {
	out := o
	if o.SellerID != nil {
		id := *o.SellerID
		out.SellerID = &id
	}
	if o.Notes != nil {
		n := *o.Notes
		out.Notes = &n
	}
	if o.ClosedAt != nil {
		t := *o.ClosedAt
		out.ClosedAt = &t
	}
	if o.Customer != nil {
		c := *o.Customer
		out.Customer = &c
	}
	if o.Seller != nil {
		s := *o.Seller
		out.Seller = &s
	}
	if o.Products != nil {
		out.Products = make([]OpportunityItemDTO, len(o.Products))
		for i, item := range o.Products {
			out.Products[i] = item
			if item.Product != nil {
				p := *item.Product
				out.Products[i].Product = &p
			}
		}
	}
	return out
}

// OpportunityItemInput is one product line of a create or update request
type OpportunityItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	UnitPrice *float64  `json:"unitPrice" validate:"required,gte=0"`
}

// CreateOpportunityRequest is the POST /opportunities body
type CreateOpportunityRequest struct {
	CustomerID uuid.UUID              `json:"customerId" validate:"required"`
	SellerID   *uuid.UUID             `json:"sellerId,omitempty"`
	Stage      *OpportunityStage      `json:"stage,omitempty"`
	Notes      *string                `json:"notes,omitempty"`
	Products   []OpportunityItemInput `json:"products,omitempty" validate:"omitempty,dive"`
}

// UpdateOpportunityRequest is the PUT /opportunities/{id} body; absent fields are left unchanged
type UpdateOpportunityRequest struct {
	CustomerID *uuid.UUID              `json:"customerId,omitempty"`
	SellerID   *uuid.UUID              `json:"sellerId,omitempty"`
	Stage      *OpportunityStage       `json:"stage,omitempty"`
	Notes      *string                 `json:"notes,omitempty"`
	Products   *[]OpportunityItemInput `json:"products,omitempty" validate:"omitempty,dive"`
	// ClearSeller is set when the body contains "sellerId": null
	ClearSeller bool `json:"-"`
}

// MoveOpportunityRequest is the PATCH /opportunities/{id} body
type MoveOpportunityRequest struct {
	Stage OpportunityStage `json:"stage" validate:"required"`
}

// OpportunityFilters narrows an opportunity listing; all set fields must match
type OpportunityFilters struct {
	SellerID    *uuid.UUID
	CustomerID  *uuid.UUID
	Stage       *OpportunityStage
	CreatedFrom *time.Time
	ClosedFrom  *time.Time
}

type StageHistoryDTO struct {
	ID            uuid.UUID         `json:"id"`
	OpportunityID uuid.UUID         `json:"opportunityId"`
	FromStage     *OpportunityStage `json:"fromStage"`
	ToStage       OpportunityStage  `json:"toStage"`
	ChangedByID   string            `json:"changedById"`
	ChangedByName string            `json:"changedByName"`
	ChangedAt     time.Time         `json:"changedAt"`
}

// ============================================================================
// Dashboard
// ============================================================================

// ValueCount pairs a monetary total with the number of opportunities behind it
type ValueCount struct {
	Value float64 `json:"value" yaml:"value"`
	Count int     `json:"count" yaml:"count"`
}

// DashboardKPIs are the headline numbers of the dashboard
type DashboardKPIs struct {
	TotalSales     ValueCount `json:"totalSales" yaml:"totalSales"`
	AverageTicket  float64    `json:"averageTicket" yaml:"averageTicket"`
	InNegotiation  ValueCount `json:"inNegotiation" yaml:"inNegotiation"`
	Lost           ValueCount `json:"lost" yaml:"lost"`
	ConversionRate float64    `json:"conversionRate" yaml:"conversionRate"`
	DropOffRate    float64    `json:"dropOffRate" yaml:"dropOffRate"`
}

type MonthlySales struct {
	Month string  `json:"month" yaml:"month"`
	Value float64 `json:"value" yaml:"value"`
	Count int     `json:"count" yaml:"count"`
}

type SellerSales struct {
	SellerID   uuid.UUID `json:"sellerId" yaml:"sellerId"`
	SellerName string    `json:"sellerName" yaml:"sellerName"`
	Value      float64   `json:"value" yaml:"value"`
	Count      int       `json:"count" yaml:"count"`
}

type ProductSales struct {
	ProductID   uuid.UUID `json:"productId" yaml:"productId"`
	ProductName string    `json:"productName" yaml:"productName"`
	Value       float64   `json:"value" yaml:"value"`
	Quantity    int       `json:"quantity" yaml:"quantity"`
}

type StageValue struct {
	Stage OpportunityStage `json:"stage" yaml:"stage"`
	Label string           `json:"label" yaml:"label"`
	Value float64          `json:"value" yaml:"value"`
	Count int              `json:"count" yaml:"count"`
}

// DashboardCharts holds the series behind the dashboard charts
type DashboardCharts struct {
	SalesByMonth   []MonthlySales `json:"salesByMonth" yaml:"salesByMonth"`
	SalesBySeller  []SellerSales  `json:"salesBySeller" yaml:"salesBySeller"`
	SalesByProduct []ProductSales `json:"salesByProduct" yaml:"salesByProduct"`
	ValueByStage   []StageValue   `json:"valueByStage" yaml:"valueByStage"`
}

// KPIPeriod selects the window of the KPI cards
type KPIPeriod string

const (
	PeriodMonth   KPIPeriod = "month"
	PeriodQuarter KPIPeriod = "quarter"
	PeriodYear    KPIPeriod = "year"
)

// Start returns the first instant of the period relative to now
func (p KPIPeriod) Start(now time.Time) time.Time {
	switch p {
	case PeriodQuarter:
		return time.Date(now.Year(), now.Month()-3, 1, 0, 0, 0, 0, now.Location())
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}

// IsValid reports whether the period is known
func (p KPIPeriod) IsValid() bool {
	return p == PeriodMonth || p == PeriodQuarter || p == PeriodYear
}

// SalesSnapshot is the exported state of a tenant's pipeline at a point in time
type SalesSnapshot struct {
	TenantID    uuid.UUID       `json:"tenantId"`
	TenantSlug  string          `json:"tenantSlug"`
	GeneratedAt time.Time       `json:"generatedAt"`
	KPIs        DashboardKPIs   `json:"kpis"`
	Charts      DashboardCharts `json:"charts"`
}

// ============================================================================
// Responses
// ============================================================================

// Response envelopes. Every resource is wrapped in a named field.

type MeResponse struct {
	User   UserDTO   `json:"user"`
	Tenant TenantDTO `json:"tenant"`
}

type UsersResponse struct {
	Users []UserDTO `json:"users"`
}

type SellerResponse struct {
	Seller SellerDTO `json:"seller"`
}

type SellersResponse struct {
	Sellers []SellerDTO `json:"sellers"`
}

type ProductResponse struct {
	Product ProductDTO `json:"product"`
}

type ProductsResponse struct {
	Products []ProductDTO `json:"products"`
}

type CustomerResponse struct {
	Customer CustomerDTO `json:"customer"`
}

type CustomersResponse struct {
	Customers []CustomerDTO `json:"customers"`
}

type OpportunityResponse struct {
	Opportunity OpportunityDTO `json:"opportunity"`
}

type OpportunitiesResponse struct {
	Opportunities []OpportunityDTO `json:"opportunities"`
}

type HistoryResponse struct {
	History []StageHistoryDTO `json:"history"`
}

type KPIsResponse struct {
	KPIs DashboardKPIs `json:"kpis"`
}

type ChartsResponse struct {
	Charts DashboardCharts `json:"charts"`
}

// SuccessResponse is returned by deletes
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}
