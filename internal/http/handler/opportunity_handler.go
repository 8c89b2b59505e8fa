package handler

import (
	"net/http"
	"strings"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

type OpportunityHandler struct {
	opportunityService *service.OpportunityService
	logger             *zap.Logger
}

func NewOpportunityHandler(opportunityService *service.OpportunityService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		logger:             logger,
	}
}

// List godoc
// @Summary List opportunities
// @Description Lists opportunities newest first. Filters combine with AND.
// @Tags Opportunities
// @Produce json
// @Param seller_id query string false "Filter by seller" format(uuid)
// @Param customer_id query string false "Filter by customer" format(uuid)
// @Param stage query string false "Filter by stage" Enums(first_contact, proposal, negotiation, awaiting_payment, closed_won, closed_lost)
// @Success 200 {object} domain.OpportunitiesResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities [get]
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &domain.OpportunityFilters{}

	var err error
	if filters.SellerID, err = queryUUID(r, "seller_id"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.CustomerID, err = queryUUID(r, "customer_id"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("stage")); raw != "" {
		stage := domain.OpportunityStage(raw)
		filters.Stage = &stage
	}

	opps, err := h.opportunityService.List(r.Context(), filters)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.OpportunitiesResponse{Opportunities: opps})
}

// GetByID godoc
// @Summary Get opportunity by ID
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.OpportunityResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid opportunity ID format")
		return
	}

	opp, err := h.opportunityService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.OpportunityResponse{Opportunity: *opp})
}

// Create godoc
// @Summary Create opportunity
// @Description Creates an opportunity with its product lines. The total is computed from the lines.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param request body domain.CreateOpportunityRequest true "Opportunity data"
// @Success 201 {object} domain.OpportunityResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError "Customer, seller or product not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOpportunityRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	opp, err := h.opportunityService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/opportunities/"+opp.ID.String())
	respondJSON(w, http.StatusCreated, domain.OpportunityResponse{Opportunity: *opp})
}

// Update godoc
// @Summary Update opportunity
// @Description Changes the fields present in the body. "sellerId": null clears the seller; products replace every line.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.UpdateOpportunityRequest true "Fields to change"
// @Success 200 {object} domain.OpportunityResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [put]
func (h *OpportunityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid opportunity ID format")
		return
	}

	var req domain.UpdateOpportunityRequest
	fields, err := decodeBody(r, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}
	req.ClearSeller = isNull(fields, "sellerId")

	opp, err := h.opportunityService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.OpportunityResponse{Opportunity: *opp})
}

// Move godoc
// @Summary Move opportunity to a stage
// @Description Changes only the stage. Terminal stages stamp closed_at; other stages clear it.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.MoveOpportunityRequest true "Target stage"
// @Success 200 {object} domain.OpportunityResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [patch]
func (h *OpportunityHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid opportunity ID format")
		return
	}

	var req domain.MoveOpportunityRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Stage == "" {
		respondWithError(w, http.StatusBadRequest, "stage is required")
		return
	}

	opp, err := h.opportunityService.Move(r.Context(), id, req.Stage)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.OpportunityResponse{Opportunity: *opp})
}

// Delete godoc
// @Summary Delete opportunity
// @Description Deletes the opportunity with its lines and stage history
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.SuccessResponse
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid opportunity ID format")
		return
	}

	if err := h.opportunityService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SuccessResponse{Success: true})
}

// History godoc
// @Summary Stage history
// @Description Returns the stage changes of an opportunity, newest first
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.HistoryResponse
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /opportunities/{id}/history [get]
func (h *OpportunityHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid opportunity ID format")
		return
	}

	history, err := h.opportunityService.History(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.HistoryResponse{History: history})
}
