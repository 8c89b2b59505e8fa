package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel holds the columns shared by every table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an id when the caller did not provide one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// UserRole is the role a user holds inside their tenant
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

var roleLevels = map[UserRole]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// Level returns the position of the role in the hierarchy (0 for unknown roles)
func (r UserRole) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r grants every permission of min
func (r UserRole) AtLeast(min UserRole) bool {
	return r.Level() > 0 && r.Level() >= min.Level()
}

// IsValid reports whether the role is known
func (r UserRole) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Tenant is an isolated customer organization
type Tenant struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null"`
	Slug string `gorm:"type:varchar(250);not null;uniqueIndex"`
}

// User is a person who signs in to a tenant
type User struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index;column:tenant_id"`
	Tenant       *Tenant   `gorm:"foreignKey:TenantID"`
	Name         string    `gorm:"type:varchar(200);not null"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null;column:password_hash"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:'member'"`
}

// Seller is a salesperson opportunities and customers can be attributed to
type Seller struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;column:tenant_id"`
	Name     string    `gorm:"type:varchar(200);not null"`
	Email    string    `gorm:"type:varchar(255);not null"`
}

// Product is an item of the tenant's catalog
type Product struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;column:tenant_id"`
	Name     string    `gorm:"type:varchar(200);not null"`
	Code     *string   `gorm:"type:varchar(100)"`
	Price    float64   `gorm:"type:decimal(15,2);not null;default:0"`
}

// Customer is a buyer the tenant sells to
type Customer struct {
	BaseModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index;column:tenant_id"`
	SellerID  *uuid.UUID `gorm:"type:uuid;index;column:seller_id"`
	Seller    *Seller    `gorm:"foreignKey:SellerID"`
	Name      string     `gorm:"type:varchar(255);not null"`
	Email     string     `gorm:"type:varchar(255);not null"`
	WhatsApp  *string    `gorm:"type:varchar(20);column:whatsapp"`
	Address   *string    `gorm:"type:varchar(500)"`
	City      *string    `gorm:"type:varchar(100)"`
	State     *string    `gorm:"type:varchar(2)"`
	ZipCode   *string    `gorm:"type:varchar(8);column:zip_code"`
	BirthDate *time.Time `gorm:"type:date;column:birth_date"`
}

// Opportunity is a potential sale moving through the pipeline
type Opportunity struct {
	BaseModel
	TenantID   uuid.UUID         `gorm:"type:uuid;not null;index;column:tenant_id"`
	CustomerID uuid.UUID         `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer   *Customer         `gorm:"foreignKey:CustomerID"`
	SellerID   *uuid.UUID        `gorm:"type:uuid;index;column:seller_id"`
	Seller     *Seller           `gorm:"foreignKey:SellerID"`
	Stage      OpportunityStage  `gorm:"type:varchar(50);not null;default:'first_contact';index"`
	TotalValue float64           `gorm:"type:decimal(15,2);not null;default:0;column:total_value"`
	Notes      *string           `gorm:"type:text"`
	ClosedAt   *time.Time        `gorm:"column:closed_at"`
	Items      []OpportunityItem `gorm:"foreignKey:OpportunityID"`
}

// OpportunityItem is a product line of an opportunity.
// UnitPrice is captured when the line is written and never follows later product price changes.
type OpportunityItem struct {
	BaseModel
	OpportunityID uuid.UUID `gorm:"type:uuid;not null;index;column:opportunity_id"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index;column:product_id"`
	Product       *Product  `gorm:"foreignKey:ProductID"`
	Quantity      int       `gorm:"type:int;not null;default:1"`
	UnitPrice     float64   `gorm:"type:decimal(15,2);not null;column:unit_price"`
}

// TableName overrides the default table name to match the migration
func (OpportunityItem) TableName() string {
	return "opportunity_products"
}

// LineTotal returns quantity times unit price
func (i OpportunityItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// OpportunityStageHistory tracks stage changes of an opportunity
type OpportunityStageHistory struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OpportunityID uuid.UUID         `gorm:"type:uuid;not null;index;column:opportunity_id"`
	FromStage     *OpportunityStage `gorm:"type:varchar(50);column:from_stage"`
	ToStage       OpportunityStage  `gorm:"type:varchar(50);not null;column:to_stage"`
	ChangedByID   string            `gorm:"type:varchar(100);not null;column:changed_by_id"`
	ChangedByName string            `gorm:"type:varchar(200);column:changed_by_name"`
	ChangedAt     time.Time         `gorm:"not null;column:changed_at"`
}

// TableName overrides the default table name to match the migration
func (OpportunityStageHistory) TableName() string {
	return "opportunity_stage_history"
}

// BeforeCreate assigns an id and timestamp when missing
func (h *OpportunityStageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.ChangedAt.IsZero() {
		h.ChangedAt = time.Now().UTC()
	}
	return nil
}

// CalculateTotal sums the line totals of the given items
func CalculateTotal(items []OpportunityItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

// ClosedAtFor returns the closed_at value a stage requires: now for terminal stages, nil otherwise
func ClosedAtFor(stage OpportunityStage, now time.Time) *time.Time {
	if !stage.IsTerminal() {
		return nil
	}
	t := now.UTC()
	return &t
}
