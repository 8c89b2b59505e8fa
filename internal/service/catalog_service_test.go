package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/repository"
	"github.com/salescrm/crm-api/internal/service"
	"github.com/salescrm/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSellerService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := testutil.TenantContext(tenant)
	svc := service.NewSellerService(repository.NewSellerRepository(db), zap.NewNop())

	seller, err := svc.Create(ctx, &domain.CreateSellerRequest{Name: " Ana ", Email: "Ana@Acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", seller.Name)
	assert.Equal(t, "ana@acme.com", seller.Email)

	_, err = svc.Create(ctx, &domain.CreateSellerRequest{Name: "Ana 2", Email: "ANA@acme.com"})
	assert.ErrorIs(t, err, service.ErrConflict)

	updated, err := svc.Update(ctx, seller.ID, &domain.UpdateSellerRequest{Name: strPtr("Ana Paula")})
	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", updated.Name)
	assert.Equal(t, "ana@acme.com", updated.Email)

	_, err = svc.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrSellerNotFound)

	other := testutil.CreateTestTenant(t, db, "Globex")
	_, err = svc.GetByID(testutil.TenantContext(other), seller.ID)
	assert.ErrorIs(t, err, service.ErrSellerNotFound, "sellers are tenant scoped")

	model := &domain.Seller{}
	require.NoError(t, db.First(model, "id = ?", seller.ID).Error)
	testutil.CreateTestCustomer(t, db, tenant, model, "Cliente")
	assert.ErrorIs(t, svc.Delete(ctx, seller.ID), service.ErrConflict)

	free, err := svc.Create(ctx, &domain.CreateSellerRequest{Name: "Bruno", Email: "bruno@acme.com"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, free.ID))

	sellers, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, sellers, 1)
	assert.Equal(t, seller.ID, sellers[0].ID)
}

func TestProductService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := testutil.TenantContext(tenant)
	svc := service.NewProductService(repository.NewProductRepository(db), zap.NewNop())

	product, err := svc.Create(ctx, &domain.CreateProductRequest{Name: "Plano Pro", Code: strPtr(" PRO "), Price: floatPtr(99.9)})
	require.NoError(t, err)
	require.NotNil(t, product.Code)
	assert.Equal(t, "PRO", *product.Code)

	_, err = svc.Create(ctx, &domain.CreateProductRequest{Name: "Outro", Code: strPtr("PRO"), Price: floatPtr(1)})
	assert.ErrorIs(t, err, service.ErrConflict)

	_, err = svc.Create(ctx, &domain.CreateProductRequest{Name: "Sem preço"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.Create(ctx, &domain.CreateProductRequest{Name: "Negativo", Price: floatPtr(-1)})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	blank, err := svc.Create(ctx, &domain.CreateProductRequest{Name: "Sem código", Code: strPtr("  "), Price: floatPtr(0)})
	require.NoError(t, err)
	assert.Nil(t, blank.Code)

	updated, err := svc.Update(ctx, product.ID, &domain.UpdateProductRequest{Price: floatPtr(120), Code: strPtr("")})
	require.NoError(t, err)
	assert.InDelta(t, 120, updated.Price, 0.001)
	assert.Nil(t, updated.Code)
	assert.Equal(t, "Plano Pro", updated.Name)

	_, err = svc.Update(ctx, uuid.New(), &domain.UpdateProductRequest{})
	assert.ErrorIs(t, err, service.ErrProductNotFound)

	model := &domain.Product{}
	require.NoError(t, db.First(model, "id = ?", product.ID).Error)
	customer := testutil.CreateTestCustomer(t, db, tenant, nil, "Cliente")
	opp := testutil.CreateTestOpportunity(t, db, customer, nil, domain.StageProposal, 120, time.Now())
	testutil.AddTestItem(t, db, opp, model, 1, 120)
	assert.ErrorIs(t, svc.Delete(ctx, product.ID), service.ErrConflict)

	require.NoError(t, svc.Delete(ctx, blank.ID))
	products, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
