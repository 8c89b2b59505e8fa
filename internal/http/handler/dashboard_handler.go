package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// KPIs godoc
// @Summary Get dashboard KPIs
// @Description Computes the KPI cards over the opportunities created since the start of the period.
// @Description
// @Description - `totalSales`: value and count of won opportunities
// @Description - `averageTicket`: mean won value, 0 when nothing was won
// @Description - `inNegotiation`: open stages (first contact to awaiting payment)
// @Description - `conversionRate`: won / all, as a percentage
// @Description - `dropOffRate`: lost / (won + lost), as a percentage
// @Tags Dashboard
// @Produce json
// @Param period query string false "KPI window" Enums(month, quarter, year) default(month)
// @Success 200 {object} domain.KPIsResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/kpis [get]
func (h *DashboardHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	period := domain.KPIPeriod(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period"))))

	kpis, err := h.dashboardService.KPIs(r.Context(), period)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.KPIsResponse{KPIs: *kpis})
}

// Charts godoc
// @Summary Get dashboard charts
// @Description Sales are won opportunities bucketed by closing month; the stage funnel covers every opportunity.
// @Tags Dashboard
// @Produce json
// @Param months query int false "Number of months, 1 to 36" default(12)
// @Success 200 {object} domain.ChartsResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /dashboard/charts [get]
func (h *DashboardHandler) Charts(w http.ResponseWriter, r *http.Request) {
	months := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = n
	}

	charts, err := h.dashboardService.Charts(r.Context(), months)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ChartsResponse{Charts: *charts})
}
