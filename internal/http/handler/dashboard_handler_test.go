package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/http/handler"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/service"
	"github.com/salescrm/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDashboardHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	customer := testutil.CreateTestCustomer(t, db, tenant, seller, "Carla")

	now := time.Now()
	testutil.CreateTestOpportunity(t, db, customer, seller, domain.StageClosedWon, 900, now)
	testutil.CreateTestOpportunity(t, db, customer, seller, domain.StageClosedLost, 100, now)
	testutil.CreateTestOpportunity(t, db, customer, nil, domain.StageNegotiation, 400, now)

	logger := zap.NewNop()
	h := handler.NewDashboardHandler(service.NewDashboardService(repository.NewOpportunityRepository(db), logger), logger)

	t.Run("KPIs default to the current month", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.KPIs(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/kpis", "", ""))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		kpis := decode[domain.KPIsResponse](t, w).KPIs
		assert.Equal(t, domain.ValueCount{Value: 900, Count: 1}, kpis.TotalSales)
		assert.Equal(t, domain.ValueCount{Value: 400, Count: 1}, kpis.InNegotiation)
		assert.Equal(t, domain.ValueCount{Value: 100, Count: 1}, kpis.Lost)
		assert.Equal(t, 900.0, kpis.AverageTicket)
		assert.InDelta(t, 50.0, kpis.DropOffRate, 0.01)
	})

	t.Run("period is case insensitive", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.KPIs(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/kpis?period=YEAR", "", ""))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown period", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.KPIs(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/kpis?period=week", "", ""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Errors, "period")
	})

	t.Run("charts default to twelve months", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Charts(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/charts", "", ""))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		charts := decode[domain.ChartsResponse](t, w).Charts
		require.Len(t, charts.SalesByMonth, 12)
		assert.Equal(t, 900.0, charts.SalesByMonth[11].Value)
		require.Len(t, charts.SalesBySeller, 1)
		assert.Equal(t, "Ana", charts.SalesBySeller[0].SellerName)
		assert.Len(t, charts.ValueByStage, 6)
	})

	t.Run("charts months", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Charts(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/charts?months=3", "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[domain.ChartsResponse](t, w).Charts.SalesByMonth, 3)
	})

	for _, months := range []string{"abc", "0", "-2", "37"} {
		t.Run("invalid months "+months, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Charts(w, newRequest(ctx, http.MethodGet, "/api/v1/dashboard/charts?months="+months, "", ""))

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
