package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user of the current tenant together with the tenant
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := r.db.WithContext(ctx).Preload("Tenant").Where("id = ?", id)
	query = ApplyTenantFilter(ctx, query)
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail looks a user up across tenants; emails are globally unique because they identify the login
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailExists reports whether any user already signs in with email
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

// List returns the users of the current tenant ordered by name
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	query := r.db.WithContext(ctx).Model(&domain.User{})
	query = ApplyTenantFilter(ctx, query)
	err := query.Order("name ASC").Find(&users).Error
	return users, err
}
