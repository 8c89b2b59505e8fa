package service

import (
	"context"
	"fmt"
	"time"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/mapper"
	"github.com/salescrm/crm-api/internal/pipeline"
	"github.com/salescrm/crm-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChartMonths = 12
	MaxChartMonths     = 36
)

type DashboardService struct {
	opportunityRepo *repository.OpportunityRepository
	logger          *zap.Logger
	now             func() time.Time
}

func NewDashboardService(opportunityRepo *repository.OpportunityRepository, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		opportunityRepo: opportunityRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// WithClock returns a copy of the service that reads the current time from now
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	clone := *s
	clone.now = now
	return &clone
}

// KPIs computes the headline numbers over the opportunities created since the start of period.
// An empty period means the current month.
func (s *DashboardService) KPIs(ctx context.Context, period domain.KPIPeriod) (*domain.DashboardKPIs, error) {
	if period == "" {
		period = domain.PeriodMonth
	}
	if !period.IsValid() {
		return nil, invalid("period", "period must be one of month, quarter, year")
	}

	start := period.Start(s.now().UTC())
	opps, err := s.opportunityRepo.List(ctx, &domain.OpportunityFilters{CreatedFrom: &start})
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}

	kpis := pipeline.ComputeKPIs(mapper.ToOpportunityDTOs(opps))
	return &kpis, nil
}

// Charts builds the chart series. Sales are the opportunities won within the last
// months months, bucketed by closing month; the funnel covers every opportunity.
func (s *DashboardService) Charts(ctx context.Context, months int) (*domain.DashboardCharts, error) {
	if months == 0 {
		months = DefaultChartMonths
	}
	if months < 1 || months > MaxChartMonths {
		return nil, invalid("months", fmt.Sprintf("months must be between 1 and %d", MaxChartMonths))
	}

	now := s.now().UTC()
	start := pipeline.MonthRange(months, now)[0]
	won := domain.StageClosedWon

	var sales, all []domain.OpportunityDTO
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opps, err := s.opportunityRepo.List(gctx, &domain.OpportunityFilters{Stage: &won, ClosedFrom: &start})
		if err != nil {
			return fmt.Errorf("failed to list won opportunities: %w", err)
		}
		sales = mapper.ToOpportunityDTOs(opps)
		return nil
	})
	g.Go(func() error {
		opps, err := s.opportunityRepo.List(gctx, nil)
		if err != nil {
			return fmt.Errorf("failed to list opportunities: %w", err)
		}
		all = mapper.ToOpportunityDTOs(opps)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySeller := pipeline.GroupBySeller(sales)
	if bySeller.Unattributed.Count > 0 {
		s.logger.Debug("won opportunities without seller left out of seller chart",
			zap.Int("count", bySeller.Unattributed.Count),
			zap.Float64("value", bySeller.Unattributed.Value),
		)
	}

	return &domain.DashboardCharts{
		SalesByMonth:   pipeline.MonthlyBucketsBy(sales, months, now, pipeline.ClosedAt),
		SalesBySeller:  bySeller.Sellers,
		SalesByProduct: pipeline.GroupByProduct(sales),
		ValueByStage:   pipeline.ValueByStage(all),
	}, nil
}
