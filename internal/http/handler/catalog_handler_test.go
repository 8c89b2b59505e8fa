package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/http/handler"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/service"
	"github.com/salescrm/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createTestSellerHandler(db *gorm.DB) *handler.SellerHandler {
	logger := zap.NewNop()
	return handler.NewSellerHandler(service.NewSellerService(repository.NewSellerRepository(db), logger), logger)
}

func createTestProductHandler(db *gorm.DB) *handler.ProductHandler {
	logger := zap.NewNop()
	return handler.NewProductHandler(service.NewProductService(repository.NewProductRepository(db), logger), logger)
}

func TestSellerHandler_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	h := createTestSellerHandler(db)

	w := httptest.NewRecorder()
	h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/sellers", `{"name":" Ana Lima ","email":"Ana@Example.com"}`, ""))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.SellerResponse](t, w).Seller
	assert.Equal(t, "Ana Lima", created.Name)
	assert.Equal(t, "ana@example.com", created.Email)
	assert.Equal(t, "/api/v1/sellers/"+created.ID.String(), w.Header().Get("Location"))

	t.Run("duplicate email", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/sellers", `{"name":"Outra Ana","email":"ana@example.com"}`, ""))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/sellers", `{"name":"Bruno"}`, ""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		apiErr := decodeError(t, w)
		assert.Equal(t, "email is required", apiErr.Message)
		assert.Contains(t, apiErr.Errors, "email")
	})

	t.Run("partial update", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, newRequest(ctx, http.MethodPut, "/api/v1/sellers/"+created.ID.String(), `{"name":"Ana Lima Souza"}`, created.ID.String()))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[domain.SellerResponse](t, w).Seller
		assert.Equal(t, "Ana Lima Souza", updated.Name)
		assert.Equal(t, "ana@example.com", updated.Email)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.GetByID(w, newRequest(ctx, http.MethodGet, "/api/v1/sellers/abc", "", "abc"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		id := uuid.NewString()
		w := httptest.NewRecorder()
		h.GetByID(w, newRequest(ctx, http.MethodGet, "/api/v1/sellers/"+id, "", id))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.ErrorTypeNotFound, decodeError(t, w).Type)
	})

	t.Run("other tenant cannot read it", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, db, "Other")
		w := httptest.NewRecorder()
		h.GetByID(w, newRequest(tenantCtx(other), http.MethodGet, "/api/v1/sellers/"+created.ID.String(), "", created.ID.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete blocked while customers reference it", func(t *testing.T) {
		seller := &domain.Seller{BaseModel: domain.BaseModel{ID: created.ID}, TenantID: tenant.ID}
		testutil.CreateTestCustomer(t, db, tenant, seller, "Carla")

		w := httptest.NewRecorder()
		h.Delete(w, newRequest(ctx, http.MethodDelete, "/api/v1/sellers/"+created.ID.String(), "", created.ID.String()))

		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "seller has 1 customers and 0 opportunities", decodeError(t, w).Message)
	})

	t.Run("delete", func(t *testing.T) {
		seller := testutil.CreateTestSeller(t, db, tenant, "Temporário")
		w := httptest.NewRecorder()
		h.Delete(w, newRequest(ctx, http.MethodDelete, "/api/v1/sellers/"+seller.ID.String(), "", seller.ID.String()))

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[domain.SuccessResponse](t, w).Success)
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, newRequest(ctx, http.MethodGet, "/api/v1/sellers", "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[domain.SellersResponse](t, w).Sellers, 1)
	})
}

func TestProductHandler_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	h := createTestProductHandler(db)

	w := httptest.NewRecorder()
	h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/products", `{"name":"Plano Pro","code":" PRO-1 ","price":199.9}`, ""))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[domain.ProductResponse](t, w).Product
	require.NotNil(t, created.Code)
	assert.Equal(t, "PRO-1", *created.Code)
	assert.InDelta(t, 199.9, created.Price, 0.001)

	t.Run("free product", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/products", `{"name":"Brinde","price":0}`, ""))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Nil(t, decode[domain.ProductResponse](t, w).Product.Code)
	})

	t.Run("negative price", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/products", `{"name":"Errado","price":-1}`, ""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Errors, "price")
	})

	t.Run("missing price", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/products", `{"name":"Sem preço"}`, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate code", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/products", `{"name":"Outro","code":"PRO-1","price":10}`, ""))

		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "a product with this code already exists", decodeError(t, w).Message)
	})

	t.Run("update price", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, newRequest(ctx, http.MethodPut, "/api/v1/products/"+created.ID.String(), `{"price":249}`, created.ID.String()))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[domain.ProductResponse](t, w).Product
		assert.Equal(t, 249.0, updated.Price)
		assert.Equal(t, "Plano Pro", updated.Name)
	})

	t.Run("delete blocked while an opportunity uses it", func(t *testing.T) {
		customer := testutil.CreateTestCustomer(t, db, tenant, nil, "Carla")
		opp := testutil.CreateTestOpportunity(t, db, customer, nil, domain.StageProposal, 249, time.Now())
		testutil.AddTestItem(t, db, opp, &domain.Product{BaseModel: domain.BaseModel{ID: created.ID}, TenantID: tenant.ID}, 1, 249)

		w := httptest.NewRecorder()
		h.Delete(w, newRequest(ctx, http.MethodDelete, "/api/v1/products/"+created.ID.String(), "", created.ID.String()))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, newRequest(ctx, http.MethodGet, "/api/v1/products", "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[domain.ProductsResponse](t, w).Products, 2)
	})
}
