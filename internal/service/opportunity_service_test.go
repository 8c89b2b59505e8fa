package service_test

import (
	"context"
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
	"gorm.io/gorm"
)

// steppingClock returns a clock that advances one minute per call, starting after base
func steppingClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func createOpportunityService(db *gorm.DB) *service.OpportunityService {
	return service.NewOpportunityService(
		repository.NewOpportunityRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewSellerRepository(db),
		repository.NewProductRepository(db),
		repository.NewStageHistoryRepository(db),
		zap.NewNop(),
	)
}

type opportunityFixture struct {
	db       *gorm.DB
	tenant   *domain.Tenant
	user     *domain.User
	ctx      context.Context
	customer *domain.Customer
	seller   *domain.Seller
	plan     *domain.Product
	support  *domain.Product
}

func setupOpportunityFixture(t *testing.T) *opportunityFixture {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	user := testutil.CreateTestUser(t, db, tenant, domain.RoleMember)
	return &opportunityFixture{
		db:       db,
		tenant:   tenant,
		user:     user,
		ctx:      testutil.ContextFor(user),
		customer: testutil.CreateTestCustomer(t, db, tenant, nil, "Carla"),
		seller:   testutil.CreateTestSeller(t, db, tenant, "Ana"),
		plan:     testutil.CreateTestProduct(t, db, tenant, "Plano", 100),
		support:  testutil.CreateTestProduct(t, db, tenant, "Suporte", 50),
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func stagePtr(s domain.OpportunityStage) *domain.OpportunityStage { return &s }

func itemFor(t *testing.T, opp *domain.OpportunityDTO, productID uuid.UUID) domain.OpportunityItemDTO {
	t.Helper()
	for _, item := range opp.Products {
		if item.ProductID == productID {
			return item
		}
	}
	t.Fatalf("opportunity has no line for product %s", productID)
	return domain.OpportunityItemDTO{}
}

func TestOpportunityService_Create(t *testing.T) {
	f := setupOpportunityFixture(t)
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := createOpportunityService(f.db).WithClock(steppingClock(base))

	t.Run("defaults and computed total", func(t *testing.T) {
		opp, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{
			CustomerID: f.customer.ID,
			SellerID:   &f.seller.ID,
			Notes:      strPtr("  ligar amanhã  "),
			Products: []domain.OpportunityItemInput{
				{ProductID: f.plan.ID, Quantity: intPtr(2), UnitPrice: floatPtr(90)},
				{ProductID: f.support.ID, UnitPrice: floatPtr(50)},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StageFirstContact, opp.Stage)
		assert.Nil(t, opp.ClosedAt)
		assert.Equal(t, 230.0, opp.TotalValue)
		require.NotNil(t, opp.Notes)
		assert.Equal(t, "ligar amanhã", *opp.Notes)
		assert.Equal(t, f.tenant.ID, opp.TenantID)

		require.Len(t, opp.Products, 2)
		planLine := itemFor(t, opp, f.plan.ID)
		assert.Equal(t, 2, planLine.Quantity)
		assert.Equal(t, 90.0, planLine.UnitPrice, "unit price is the one sent, not the catalog price")
		require.NotNil(t, planLine.Product)
		assert.Equal(t, "Plano", planLine.Product.Name)
		assert.Equal(t, 1, itemFor(t, opp, f.support.ID).Quantity, "quantity defaults to 1")
		require.NotNil(t, opp.Customer)
		assert.Equal(t, "Carla", opp.Customer.Name)
		require.NotNil(t, opp.Seller)
		assert.Equal(t, "Ana", opp.Seller.Name)

		history, err := svc.History(f.ctx, opp.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Nil(t, history[0].FromStage)
		assert.Equal(t, domain.StageFirstContact, history[0].ToStage)
		assert.Equal(t, f.user.ID.String(), history[0].ChangedByID)
	})

	t.Run("created directly as won is closed", func(t *testing.T) {
		opp, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{
			CustomerID: f.customer.ID,
			Stage:      stagePtr(domain.StageClosedWon),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageClosedWon, opp.Stage)
		require.NotNil(t, opp.ClosedAt)
		assert.Equal(t, 0.0, opp.TotalValue)
		assert.Empty(t, opp.Products)
		assert.NotNil(t, opp.Products, "products is always an array")
	})

	t.Run("blank notes are stored as null", func(t *testing.T) {
		opp, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{
			CustomerID: f.customer.ID,
			Notes:      strPtr("   "),
		})
		require.NoError(t, err)
		assert.Nil(t, opp.Notes)
	})

	t.Run("rejections", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, f.db, "Globex")
		foreignCustomer := testutil.CreateTestCustomer(t, f.db, other, nil, "Estranho")

		cases := []struct {
			name string
			req  domain.CreateOpportunityRequest
			want error
		}{
			{"missing customer", domain.CreateOpportunityRequest{}, service.ErrInvalidInput},
			{"unknown customer", domain.CreateOpportunityRequest{CustomerID: uuid.New()}, service.ErrCustomerNotFound},
			{"customer of another tenant", domain.CreateOpportunityRequest{CustomerID: foreignCustomer.ID}, service.ErrCustomerNotFound},
			{"unknown seller", domain.CreateOpportunityRequest{CustomerID: f.customer.ID, SellerID: ptrUUID(uuid.New())}, service.ErrSellerNotFound},
			{"invalid stage", domain.CreateOpportunityRequest{CustomerID: f.customer.ID, Stage: stagePtr("won")}, service.ErrInvalidStage},
			{"unknown product", domain.CreateOpportunityRequest{
				CustomerID: f.customer.ID,
				Products:   []domain.OpportunityItemInput{{ProductID: uuid.New(), UnitPrice: floatPtr(1)}},
			}, service.ErrProductNotFound},
			{"zero quantity", domain.CreateOpportunityRequest{
				CustomerID: f.customer.ID,
				Products:   []domain.OpportunityItemInput{{ProductID: f.plan.ID, Quantity: intPtr(0), UnitPrice: floatPtr(1)}},
			}, service.ErrInvalidInput},
			{"negative unit price", domain.CreateOpportunityRequest{
				CustomerID: f.customer.ID,
				Products:   []domain.OpportunityItemInput{{ProductID: f.plan.ID, UnitPrice: floatPtr(-1)}},
			}, service.ErrInvalidInput},
			{"missing unit price", domain.CreateOpportunityRequest{
				CustomerID: f.customer.ID,
				Products:   []domain.OpportunityItemInput{{ProductID: f.plan.ID}},
			}, service.ErrInvalidInput},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := tc.req
				_, err := svc.Create(f.ctx, &req)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func TestOpportunityService_Move(t *testing.T) {
	f := setupOpportunityFixture(t)
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := createOpportunityService(f.db).WithClock(steppingClock(base))

	opp, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{CustomerID: f.customer.ID})
	require.NoError(t, err)

	won, err := svc.Move(f.ctx, opp.ID, domain.StageClosedWon)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosedWon, won.Stage)
	require.NotNil(t, won.ClosedAt)
	assert.True(t, won.ClosedAt.Equal(base.Add(2*time.Minute)), "closed_at is the time of the move, got %s", won.ClosedAt)

	reopened, err := svc.Move(f.ctx, opp.ID, domain.StageNegotiation)
	require.NoError(t, err)
	assert.Equal(t, domain.StageNegotiation, reopened.Stage)
	assert.Nil(t, reopened.ClosedAt)

	same, err := svc.Move(f.ctx, opp.ID, domain.StageNegotiation)
	require.NoError(t, err)
	assert.Equal(t, domain.StageNegotiation, same.Stage)

	history, err := svc.History(f.ctx, opp.ID)
	require.NoError(t, err)
	require.Len(t, history, 3, "moving to the current stage records nothing")
	assert.Equal(t, domain.StageNegotiation, history[0].ToStage)
	require.NotNil(t, history[0].FromStage)
	assert.Equal(t, domain.StageClosedWon, *history[0].FromStage)
	assert.Equal(t, domain.StageClosedWon, history[1].ToStage)
	assert.Nil(t, history[2].FromStage)

	_, err = svc.Move(f.ctx, opp.ID, "archived")
	assert.ErrorIs(t, err, service.ErrInvalidStage)

	_, err = svc.Move(f.ctx, uuid.New(), domain.StageProposal)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestOpportunityService_Update(t *testing.T) {
	f := setupOpportunityFixture(t)
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := createOpportunityService(f.db).WithClock(steppingClock(base))

	opp, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{
		CustomerID: f.customer.ID,
		SellerID:   &f.seller.ID,
		Notes:      strPtr("primeira conversa"),
		Products: []domain.OpportunityItemInput{
			{ProductID: f.plan.ID, UnitPrice: floatPtr(100)},
		},
	})
	require.NoError(t, err)

	t.Run("replacing products recomputes the total", func(t *testing.T) {
		products := []domain.OpportunityItemInput{
			{ProductID: f.support.ID, Quantity: intPtr(4), UnitPrice: floatPtr(25)},
		}
		updated, err := svc.Update(f.ctx, opp.ID, &domain.UpdateOpportunityRequest{Products: &products})
		require.NoError(t, err)
		assert.Equal(t, 100.0, updated.TotalValue)
		require.Len(t, updated.Products, 1)
		assert.Equal(t, f.support.ID, updated.Products[0].ProductID)
		require.NotNil(t, updated.Notes, "absent fields are left unchanged")
		assert.Equal(t, "primeira conversa", *updated.Notes)
		require.NotNil(t, updated.SellerID)
	})

	t.Run("clearing the seller", func(t *testing.T) {
		updated, err := svc.Update(f.ctx, opp.ID, &domain.UpdateOpportunityRequest{ClearSeller: true})
		require.NoError(t, err)
		assert.Nil(t, updated.SellerID)
		assert.Nil(t, updated.Seller)
		assert.Equal(t, 100.0, updated.TotalValue, "items are kept when products is absent")
	})

	t.Run("stage change keeps closed_at in step", func(t *testing.T) {
		lost, err := svc.Update(f.ctx, opp.ID, &domain.UpdateOpportunityRequest{Stage: stagePtr(domain.StageClosedLost)})
		require.NoError(t, err)
		require.NotNil(t, lost.ClosedAt)

		open, err := svc.Update(f.ctx, opp.ID, &domain.UpdateOpportunityRequest{Stage: stagePtr(domain.StageProposal)})
		require.NoError(t, err)
		assert.Nil(t, open.ClosedAt)

		history, err := svc.History(f.ctx, opp.ID)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	})

	t.Run("unknown opportunity", func(t *testing.T) {
		_, err := svc.Update(f.ctx, uuid.New(), &domain.UpdateOpportunityRequest{})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestOpportunityService_ListAndDelete(t *testing.T) {
	f := setupOpportunityFixture(t)
	svc := createOpportunityService(f.db)

	first, err := svc.Create(f.ctx, &domain.CreateOpportunityRequest{CustomerID: f.customer.ID, SellerID: &f.seller.ID})
	require.NoError(t, err)
	_, err = svc.Create(f.ctx, &domain.CreateOpportunityRequest{CustomerID: f.customer.ID, Stage: stagePtr(domain.StageProposal)})
	require.NoError(t, err)

	all, err := svc.List(f.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bySeller, err := svc.List(f.ctx, &domain.OpportunityFilters{SellerID: &f.seller.ID})
	require.NoError(t, err)
	require.Len(t, bySeller, 1)
	assert.Equal(t, first.ID, bySeller[0].ID)

	_, err = svc.List(f.ctx, &domain.OpportunityFilters{Stage: stagePtr("bogus")})
	assert.ErrorIs(t, err, service.ErrInvalidStage)

	other := testutil.CreateTestTenant(t, f.db, "Globex")
	assert.ErrorIs(t, svc.Delete(testutil.TenantContext(other), first.ID), service.ErrNotFound)

	require.NoError(t, svc.Delete(f.ctx, first.ID))
	_, err = svc.GetByID(f.ctx, first.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	var historyRows int64
	require.NoError(t, f.db.Model(&domain.OpportunityStageHistory{}).Where("opportunity_id = ?", first.ID).Count(&historyRows).Error)
	assert.Zero(t, historyRows)
}
