package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/mapper"
	"github.com/salescrm/crm-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// AuthService registers tenants and signs users in
type AuthService struct {
	db         *gorm.DB
	tenantRepo *repository.TenantRepository
	userRepo   *repository.UserRepository
	tokens     *auth.TokenManager
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	tenantRepo *repository.TenantRepository,
	userRepo *repository.UserRepository,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		db:         db,
		tenantRepo: tenantRepo,
		userRepo:   userRepo,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a tenant for the company and its owner account in one transaction
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	companyName := strings.TrimSpace(req.CompanyName)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(name) < 2 {
		return nil, invalid("name", "name must have at least 2 characters")
	}
	if len(companyName) < 2 {
		return nil, invalid("companyName", "company name must have at least 2 characters")
	}
	if req.Password != req.ConfirmPassword {
		return nil, invalid("confirmPassword", "passwords do not match")
	}

	taken, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, invalid("password", err.Error())
	}

	tenant := &domain.Tenant{
		Name: companyName,
		Slug: TenantSlug(companyName, s.now()),
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleOwner,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tenantRepo.WithTx(tx).Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		user.TenantID = tenant.ID
		if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tenant registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("tenant_slug", tenant.Slug),
		zap.String("user_id", user.ID.String()),
	)

	user.Tenant = tenant
	return s.issue(user)
}

// Login verifies the credentials and issues a session token
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("failed login attempt", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	if user.Tenant == nil {
		tenant, err := s.tenantRepo.GetByID(ctx, user.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant: %w", err)
		}
		user.Tenant = tenant
	}

	return s.issue(user)
}

// Me returns the signed-in user and their tenant.
// System callers get a synthetic user bound to the tenant they act for.
func (s *AuthService) Me(ctx context.Context) (*domain.UserDTO, *domain.TenantDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, nil, ErrUnauthorized
	}

	if userCtx.System {
		tenant, err := s.tenantRepo.GetByID(ctx, userCtx.TenantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrNotFound
			}
			return nil, nil, fmt.Errorf("failed to get tenant: %w", err)
		}
		tenantDTO := mapper.ToTenantDTO(tenant)
		return &domain.UserDTO{
			ID:       userCtx.UserID,
			TenantID: tenant.ID,
			Name:     userCtx.Name,
			Email:    userCtx.Email,
			Role:     userCtx.Role,
		}, &tenantDTO, nil
	}

	user, err := s.userRepo.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	userDTO := mapper.ToUserDTO(user)
	var tenantDTO domain.TenantDTO
	if user.Tenant != nil {
		tenantDTO = mapper.ToTenantDTO(user.Tenant)
	}
	return &userDTO, &tenantDTO, nil
}

// ListUsers returns the users of the caller's tenant; admins and owners only
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.IsAdmin() {
		return nil, ErrForbidden
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}
	return dtos, nil
}

func (s *AuthService) issue(user *domain.User) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	resp := &domain.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      mapper.ToUserDTO(user),
	}
	if user.Tenant != nil {
		resp.Tenant = mapper.ToTenantDTO(user.Tenant)
	}
	return resp, nil
}

// TenantSlug derives a URL-safe tenant slug from the company name,
// suffixed with the registration time in base 36 to keep it unique.
func TenantSlug(companyName string, now time.Time) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		companyName,
	)
	if err != nil {
		stripped = companyName
	}

	base := nonSlugChars.ReplaceAllString(strings.ToLower(stripped), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "tenant"
	}
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}
