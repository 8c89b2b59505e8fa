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

func createTestCustomerHandler(db *gorm.DB) *handler.CustomerHandler {
	logger := zap.NewNop()
	svc := service.NewCustomerService(
		repository.NewCustomerRepository(db),
		repository.NewSellerRepository(db),
		logger,
	)
	return handler.NewCustomerHandler(svc, logger)
}

func TestCustomerHandler_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	h := createTestCustomerHandler(db)

	body := `{
		"name": "Maria Silva",
		"email": "maria@example.com",
		"whatsapp": "(11) 99999-9999",
		"state": "sp",
		"zipCode": "01310-100",
		"sellerId": "` + seller.ID.String() + `"
	}`
	w := httptest.NewRecorder()
	h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/customers", body, ""))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := decode[domain.CustomerResponse](t, w).Customer
	assert.Equal(t, "/api/v1/customers/"+customer.ID.String(), w.Header().Get("Location"))
	assert.Equal(t, "SP", *customer.State)
	assert.Equal(t, "01310100", *customer.ZipCode)
	require.NotNil(t, customer.Seller)
	assert.Equal(t, "Ana", customer.Seller.Name)

	t.Run("invalid zip code reports the field", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/customers", `{"name":"João","email":"joao@example.com","zipCode":"123"}`, ""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		apiErr := decodeError(t, w)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "zipCode")
	})

	t.Run("unknown seller", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := `{"name":"João","email":"joao@example.com","sellerId":"` + uuid.NewString() + `"}`
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/customers", body, ""))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "seller not found", decodeError(t, w).Message)
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Create(w, newRequest(ctx, http.MethodPost, "/api/v1/customers", `{"name":"Outra","email":"MARIA@example.com"}`, ""))

		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "a customer with this email already exists", decodeError(t, w).Message)
	})
}

func TestCustomerHandler_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	customer := testutil.CreateTestCustomer(t, db, tenant, seller, "Carla")
	h := createTestCustomerHandler(db)
	id := customer.ID.String()

	t.Run("absent seller is kept", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, newRequest(ctx, http.MethodPut, "/api/v1/customers/"+id, `{"city":"Recife"}`, id))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[domain.CustomerResponse](t, w).Customer
		assert.Equal(t, "Recife", *updated.City)
		require.NotNil(t, updated.SellerID)
		assert.Equal(t, seller.ID, *updated.SellerID)
	})

	t.Run("null seller clears it", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, newRequest(ctx, http.MethodPut, "/api/v1/customers/"+id, `{"sellerId":null}`, id))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[domain.CustomerResponse](t, w).Customer
		assert.Nil(t, updated.SellerID)
		assert.Nil(t, updated.Seller)
	})

	t.Run("unknown customer", func(t *testing.T) {
		missing := uuid.NewString()
		w := httptest.NewRecorder()
		h.Update(w, newRequest(ctx, http.MethodPut, "/api/v1/customers/"+missing, `{"city":"Recife"}`, missing))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCustomerHandler_ListAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := tenantCtx(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	withOpp := testutil.CreateTestCustomer(t, db, tenant, seller, "Bruno")
	plain := testutil.CreateTestCustomer(t, db, tenant, nil, "Abel")
	testutil.CreateTestOpportunity(t, db, withOpp, seller, domain.StageProposal, 100, time.Now())
	h := createTestCustomerHandler(db)

	t.Run("list ordered by name", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, newRequest(ctx, http.MethodGet, "/api/v1/customers", "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		customers := decode[domain.CustomersResponse](t, w).Customers
		require.Len(t, customers, 2)
		assert.Equal(t, "Abel", customers[0].Name)
		assert.Equal(t, "Bruno", customers[1].Name)
	})

	t.Run("filter by seller", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, newRequest(ctx, http.MethodGet, "/api/v1/customers?seller_id="+seller.ID.String(), "", ""))

		require.Equal(t, http.StatusOK, w.Code)
		customers := decode[domain.CustomersResponse](t, w).Customers
		require.Len(t, customers, 1)
		assert.Equal(t, "Bruno", customers[0].Name)
	})

	t.Run("malformed seller filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.List(w, newRequest(ctx, http.MethodGet, "/api/v1/customers?seller_id=nope", "", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete blocked by opportunities", func(t *testing.T) {
		id := withOpp.ID.String()
		w := httptest.NewRecorder()
		h.Delete(w, newRequest(ctx, http.MethodDelete, "/api/v1/customers/"+id, "", id))

		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "customer has 1 opportunities", decodeError(t, w).Message)
	})

	t.Run("delete", func(t *testing.T) {
		id := plain.ID.String()
		w := httptest.NewRecorder()
		h.Delete(w, newRequest(ctx, http.MethodDelete, "/api/v1/customers/"+id, "", id))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.GetByID(w, newRequest(ctx, http.MethodGet, "/api/v1/customers/"+id, "", id))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
