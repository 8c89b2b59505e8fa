package service_test

import (
	"testing"
	"time"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/service"
	"github.com/salescrm/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dashboardNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func createDashboardService(db *gorm.DB) *service.DashboardService {
	return service.NewDashboardService(repository.NewOpportunityRepository(db), zap.NewNop()).
		WithClock(func() time.Time { return dashboardNow })
}

// seedDashboard creates a small pipeline for tenant:
// won 1000 (Jun, Ana), won 500 (Apr, no seller), lost 200 (Jun), proposal 300 (Jun)
// and first contact 100 (Dec of the previous year).
func seedDashboard(t *testing.T, db *gorm.DB, tenant *domain.Tenant) *domain.Seller {
	t.Helper()
	ana := testutil.CreateTestSeller(t, db, tenant, "Ana")
	customer := testutil.CreateTestCustomer(t, db, tenant, nil, "Cliente")

	testutil.CreateTestOpportunity(t, db, customer, ana, domain.StageClosedWon, 1000, time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC))
	testutil.CreateTestOpportunity(t, db, customer, nil, domain.StageClosedWon, 500, time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC))
	testutil.CreateTestOpportunity(t, db, customer, ana, domain.StageClosedLost, 200, time.Date(2025, time.June, 5, 9, 0, 0, 0, time.UTC))
	testutil.CreateTestOpportunity(t, db, customer, ana, domain.StageProposal, 300, time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	testutil.CreateTestOpportunity(t, db, customer, nil, domain.StageFirstContact, 100, time.Date(2024, time.December, 1, 9, 0, 0, 0, time.UTC))
	return ana
}

func TestDashboardService_KPIs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	seedDashboard(t, db, tenant)
	svc := createDashboardService(db)
	ctx := testutil.TenantContext(tenant)

	t.Run("current month by default", func(t *testing.T) {
		kpis, err := svc.KPIs(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, domain.ValueCount{Value: 1000, Count: 1}, kpis.TotalSales)
		assert.InDelta(t, 1000, kpis.AverageTicket, 0.001)
		assert.Equal(t, domain.ValueCount{Value: 300, Count: 1}, kpis.InNegotiation)
		assert.Equal(t, domain.ValueCount{Value: 200, Count: 1}, kpis.Lost)
		assert.InDelta(t, 33.333, kpis.ConversionRate, 0.01)
		assert.InDelta(t, 50, kpis.DropOffRate, 0.001)
	})

	t.Run("year", func(t *testing.T) {
		kpis, err := svc.KPIs(ctx, domain.PeriodYear)
		require.NoError(t, err)

		assert.Equal(t, domain.ValueCount{Value: 1500, Count: 2}, kpis.TotalSales)
		assert.InDelta(t, 750, kpis.AverageTicket, 0.001)
		assert.InDelta(t, 50, kpis.ConversionRate, 0.001)
		assert.InDelta(t, 33.333, kpis.DropOffRate, 0.01)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := svc.KPIs(ctx, domain.KPIPeriod("week"))
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("other tenants see nothing", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, db, "Globex")
		kpis, err := svc.KPIs(testutil.TenantContext(other), domain.PeriodYear)
		require.NoError(t, err)
		assert.Equal(t, domain.DashboardKPIs{}, *kpis)
	})
}

func TestDashboardService_Charts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ana := seedDashboard(t, db, tenant)
	svc := createDashboardService(db)
	ctx := testutil.TenantContext(tenant)

	charts, err := svc.Charts(ctx, 3)
	require.NoError(t, err)

	require.Len(t, charts.SalesByMonth, 3)
	assert.Equal(t, domain.MonthlySales{Month: "Abr/2025", Value: 500, Count: 1}, charts.SalesByMonth[0])
	assert.Equal(t, domain.MonthlySales{Month: "Mai/2025", Value: 0, Count: 0}, charts.SalesByMonth[1])
	assert.Equal(t, domain.MonthlySales{Month: "Jun/2025", Value: 1000, Count: 1}, charts.SalesByMonth[2])

	require.Len(t, charts.SalesBySeller, 1, "won opportunities without seller are left out")
	assert.Equal(t, ana.ID, charts.SalesBySeller[0].SellerID)
	assert.InDelta(t, 1000, charts.SalesBySeller[0].Value, 0.001)

	require.Len(t, charts.ValueByStage, 6)
	assert.Equal(t, domain.StageFirstContact, charts.ValueByStage[0].Stage)
	assert.InDelta(t, 100, charts.ValueByStage[0].Value, 0.001, "the funnel is not limited to the window")

	t.Run("default window", func(t *testing.T) {
		charts, err := svc.Charts(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, charts.SalesByMonth, service.DefaultChartMonths)
	})

	t.Run("window bounds", func(t *testing.T) {
		_, err := svc.Charts(ctx, -1)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		_, err = svc.Charts(ctx, service.MaxChartMonths+1)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}
