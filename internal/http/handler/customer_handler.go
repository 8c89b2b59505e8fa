package handler

import (
	"net/http"
	"strings"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	customerService *service.CustomerService
	logger          *zap.Logger
}

func NewCustomerHandler(customerService *service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		logger:          logger,
	}
}

// List godoc
// @Summary List customers
// @Description Lists customers ordered by name, optionally matching a search term against name or email
// @Tags Customers
// @Produce json
// @Param search query string false "Search by name or email"
// @Param seller_id query string false "Filter by seller" format(uuid)
// @Success 200 {object} domain.CustomersResponse
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers [get]
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	sellerID, err := queryUUID(r, "seller_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	customers, err := h.customerService.List(r.Context(), search, sellerID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.CustomersResponse{Customers: customers})
}

// GetByID godoc
// @Summary Get customer by ID
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID" format(uuid)
// @Success 200 {object} domain.CustomerResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	customer, err := h.customerService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.CustomerResponse{Customer: *customer})
}

// Create godoc
// @Summary Create customer
// @Description Name and email are required. WhatsApp, state, zip code and birth date follow the Brazilian formats.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body domain.CustomerInput true "Customer data"
// @Success 201 {object} domain.CustomerResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError "Seller not found"
// @Failure 409 {object} domain.APIError "Duplicate email"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers [post]
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.CustomerInput
	if _, err := decodeBody(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(input); err != nil {
		respondValidationError(w, err)
		return
	}

	customer, err := h.customerService.Create(r.Context(), &input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/customers/"+customer.ID.String())
	respondJSON(w, http.StatusCreated, domain.CustomerResponse{Customer: *customer})
}

// Update godoc
// @Summary Update customer
// @Description Changes the fields present in the body. Empty strings clear optional fields and "sellerId": null clears the seller.
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path string true "Customer ID" format(uuid)
// @Param request body domain.CustomerInput true "Fields to change"
// @Success 200 {object} domain.CustomerResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Duplicate email"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [put]
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	var input domain.CustomerInput
	fields, err := decodeBody(r, &input)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(input); err != nil {
		respondValidationError(w, err)
		return
	}
	input.ClearSeller = isNull(fields, "sellerId")

	customer, err := h.customerService.Update(r.Context(), id, &input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.CustomerResponse{Customer: *customer})
}

// Delete godoc
// @Summary Delete customer
// @Description Fails with 409 while the customer has opportunities
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID" format(uuid)
// @Success 200 {object} domain.SuccessResponse
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [delete]
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID format")
		return
	}

	if err := h.customerService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SuccessResponse{Success: true})
}
