package handler

import (
	"net/http"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

type SellerHandler struct {
	sellerService *service.SellerService
	logger        *zap.Logger
}

func NewSellerHandler(sellerService *service.SellerService, logger *zap.Logger) *SellerHandler {
	return &SellerHandler{
		sellerService: sellerService,
		logger:        logger,
	}
}

// List godoc
// @Summary List sellers
// @Tags Sellers
// @Produce json
// @Success 200 {object} domain.SellersResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sellers [get]
func (h *SellerHandler) List(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.sellerService.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SellersResponse{Sellers: sellers})
}

// GetByID godoc
// @Summary Get seller by ID
// @Tags Sellers
// @Produce json
// @Param id path string true "Seller ID" format(uuid)
// @Success 200 {object} domain.SellerResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sellers/{id} [get]
func (h *SellerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid seller ID format")
		return
	}

	seller, err := h.sellerService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SellerResponse{Seller: *seller})
}

// Create godoc
// @Summary Create seller
// @Tags Sellers
// @Accept json
// @Produce json
// @Param request body domain.CreateSellerRequest true "Seller data"
// @Success 201 {object} domain.SellerResponse
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Duplicate email"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sellers [post]
func (h *SellerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSellerRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	seller, err := h.sellerService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sellers/"+seller.ID.String())
	respondJSON(w, http.StatusCreated, domain.SellerResponse{Seller: *seller})
}

// Update godoc
// @Summary Update seller
// @Tags Sellers
// @Accept json
// @Produce json
// @Param id path string true "Seller ID" format(uuid)
// @Param request body domain.UpdateSellerRequest true "Fields to change"
// @Success 200 {object} domain.SellerResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Duplicate email"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sellers/{id} [put]
func (h *SellerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid seller ID format")
		return
	}

	var req domain.UpdateSellerRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	seller, err := h.sellerService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SellerResponse{Seller: *seller})
}

// Delete godoc
// @Summary Delete seller
// @Description Fails with 409 while customers or opportunities are attributed to the seller
// @Tags Sellers
// @Produce json
// @Param id path string true "Seller ID" format(uuid)
// @Success 200 {object} domain.SuccessResponse
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /sellers/{id} [delete]
func (h *SellerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid seller ID format")
		return
	}

	if err := h.sellerService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SuccessResponse{Success: true})
}
