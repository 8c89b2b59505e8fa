package handler

import (
	"net/http"

	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *service.ProductService
	logger         *zap.Logger
}

func NewProductHandler(productService *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// List godoc
// @Summary List products
// @Tags Products
// @Produce json
// @Success 200 {object} domain.ProductsResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products [get]
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ProductsResponse{Products: products})
}

// GetByID godoc
// @Summary Get product by ID
// @Tags Products
// @Produce json
// @Param id path string true "Product ID" format(uuid)
// @Success 200 {object} domain.ProductResponse
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products/{id} [get]
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	product, err := h.productService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ProductResponse{Product: *product})
}

// Create godoc
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param request body domain.CreateProductRequest true "Product data"
// @Success 201 {object} domain.ProductResponse
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Duplicate code"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products [post]
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	product, err := h.productService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/products/"+product.ID.String())
	respondJSON(w, http.StatusCreated, domain.ProductResponse{Product: *product})
}

// Update godoc
// @Summary Update product
// @Description Changes the fields present in the body. An empty code clears it.
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID" format(uuid)
// @Param request body domain.UpdateProductRequest true "Fields to change"
// @Success 200 {object} domain.ProductResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Duplicate code"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products/{id} [put]
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	var req domain.UpdateProductRequest
	if _, err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	product, err := h.productService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.ProductResponse{Product: *product})
}

// Delete godoc
// @Summary Delete product
// @Description Fails with 409 while opportunity line items reference the product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID" format(uuid)
// @Success 200 {object} domain.SuccessResponse
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.SuccessResponse{Success: true})
}
