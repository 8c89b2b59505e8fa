package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/auth"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SalesWarehouse receives the monthly won totals of each tenant
type SalesWarehouse interface {
	IsEnabled() bool
	UpsertMonthlySales(ctx context.Context, tenantID uuid.UUID, tenantSlug string, months []domain.MonthlySales, exportedAt time.Time) error
}

// ExportResult summarizes one export run
type ExportResult struct {
	Tenants  int
	Exported int
	Failed   int
	// Keys are the storage keys written, sorted
	Keys []string
}

// ExportService writes a sales snapshot of every tenant to storage and,
// when configured, the monthly won totals to the warehouse
type ExportService struct {
	tenantRepo  *repository.TenantRepository
	dashboard   *DashboardService
	storage     storage.Storage
	warehouse   SalesWarehouse
	logger      *zap.Logger
	concurrency int
	months      int
	now         func() time.Time
}

func NewExportService(
	tenantRepo *repository.TenantRepository,
	dashboard *DashboardService,
	store storage.Storage,
	warehouse SalesWarehouse,
	logger *zap.Logger,
	concurrency int,
	months int,
) *ExportService {
	if concurrency < 1 {
		concurrency = 1
	}
	if months < 1 || months > MaxChartMonths {
		months = DefaultChartMonths
	}
	return &ExportService{
		tenantRepo:  tenantRepo,
		dashboard:   dashboard,
		storage:     store,
		warehouse:   warehouse,
		logger:      logger,
		concurrency: concurrency,
		months:      months,
		now:         time.Now,
	}
}

// WithClock returns a copy of the service that reads the current time from now
func (s *ExportService) WithClock(now func() time.Time) *ExportService {
	clone := *s
	clone.now = now
	clone.dashboard = s.dashboard.WithClock(now)
	return &clone
}

// ExportAll exports every tenant, at most concurrency at a time. A failing tenant
// does not stop the others; the failures are joined into the returned error.
func (s *ExportService) ExportAll(ctx context.Context) (*ExportResult, error) {
	tenants, err := s.tenantRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	result := &ExportResult{Tenants: len(tenants), Keys: []string{}}
	var (
		mu   sync.Mutex
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range tenants {
		tenant := tenants[i]
		g.Go(func() error {
			key, err := s.ExportTenant(ctx, &tenant)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				errs = append(errs, fmt.Errorf("tenant %s: %w", tenant.Slug, err))
				s.logger.Error("sales export failed",
					zap.String("tenant_id", tenant.ID.String()),
					zap.String("tenant_slug", tenant.Slug),
					zap.Error(err),
				)
				return nil
			}
			result.Exported++
			result.Keys = append(result.Keys, key)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Keys)
	return result, errors.Join(errs...)
}

// ExportTenant builds the snapshot of one tenant, stores it and returns its storage key
func (s *ExportService) ExportTenant(ctx context.Context, tenant *domain.Tenant) (string, error) {
	ctx = auth.WithUserContext(ctx, &auth.UserContext{
		UserID:   auth.SystemUserID,
		Name:     "Sales export",
		TenantID: tenant.ID,
		Role:     domain.RoleOwner,
		System:   true,
	})

	now := s.now().UTC()
	snapshot, err := s.Snapshot(ctx, tenant, now)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := SnapshotKey(tenant.Slug, now)
	size, err := s.storage.Upload(ctx, key, "application/json", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	if s.warehouse != nil && s.warehouse.IsEnabled() {
		if err := s.warehouse.UpsertMonthlySales(ctx, tenant.ID, tenant.Slug, snapshot.Charts.SalesByMonth, now); err != nil {
			return "", fmt.Errorf("failed to write warehouse rows: %w", err)
		}
	}

	s.logger.Info("sales snapshot exported",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("key", key),
		zap.Int64("size", size),
	)
	return key, nil
}

// Snapshot computes the year-to-date KPIs and the charts of the tenant in ctx
func (s *ExportService) Snapshot(ctx context.Context, tenant *domain.Tenant, now time.Time) (*domain.SalesSnapshot, error) {
	kpis, err := s.dashboard.KPIs(ctx, domain.PeriodYear)
	if err != nil {
		return nil, fmt.Errorf("failed to compute kpis: %w", err)
	}
	charts, err := s.dashboard.Charts(ctx, s.months)
	if err != nil {
		return nil, fmt.Errorf("failed to compute charts: %w", err)
	}

	return &domain.SalesSnapshot{
		TenantID:    tenant.ID,
		TenantSlug:  tenant.Slug,
		GeneratedAt: now,
		KPIs:        *kpis,
		Charts:      *charts,
	}, nil
}

// SnapshotKey is the storage key of a tenant's snapshot for the day of at
func SnapshotKey(tenantSlug string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%s.json", tenantSlug, at.UTC().Format("2006-01-02"))
}
