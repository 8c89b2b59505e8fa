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
	"gorm.io/gorm"
)

func createCustomerService(db *gorm.DB) *service.CustomerService {
	return service.NewCustomerService(
		repository.NewCustomerRepository(db),
		repository.NewSellerRepository(db),
		zap.NewNop(),
	)
}

func TestCustomerService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := testutil.TenantContext(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	svc := createCustomerService(db)

	t.Run("normalizes fields", func(t *testing.T) {
		customer, err := svc.Create(ctx, &domain.CustomerInput{
			Name:      strPtr("  Maria Silva "),
			Email:     strPtr(" Maria@Example.COM "),
			WhatsApp:  strPtr("(11) 99999-9999"),
			City:      strPtr(" São Paulo "),
			State:     strPtr("sp"),
			ZipCode:   strPtr("01310-100"),
			BirthDate: strPtr("1990-05-20"),
			Address:   strPtr("   "),
			SellerID:  &seller.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, "Maria Silva", customer.Name)
		assert.Equal(t, "maria@example.com", customer.Email)
		assert.Equal(t, "São Paulo", *customer.City)
		assert.Equal(t, "SP", *customer.State)
		assert.Equal(t, "01310100", *customer.ZipCode)
		require.NotNil(t, customer.BirthDate)
		assert.Equal(t, "1990-05-20", *customer.BirthDate)
		assert.Nil(t, customer.Address, "blank optional fields are stored as null")
		require.NotNil(t, customer.Seller)
		assert.Equal(t, "Ana", customer.Seller.Name)
	})

	t.Run("duplicate email in the tenant", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CustomerInput{Name: strPtr("Outra Maria"), Email: strPtr("maria@example.com")})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("same email in another tenant is fine", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, db, "Globex")
		_, err := svc.Create(testutil.TenantContext(other), &domain.CustomerInput{Name: strPtr("Maria"), Email: strPtr("maria@example.com")})
		assert.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
		cases := []struct {
			name  string
			input domain.CustomerInput
			want  error
		}{
			{"missing name", domain.CustomerInput{Email: strPtr("a@b.co")}, service.ErrInvalidInput},
			{"short name", domain.CustomerInput{Name: strPtr("A"), Email: strPtr("a@b.co")}, service.ErrInvalidInput},
			{"missing email", domain.CustomerInput{Name: strPtr("Ana")}, service.ErrInvalidInput},
			{"bad email", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("not-an-email")}, service.ErrInvalidInput},
			{"bad whatsapp", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a1@b.co"), WhatsApp: strPtr("12-34")}, service.ErrInvalidInput},
			{"bad state", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a2@b.co"), State: strPtr("SPX")}, service.ErrInvalidInput},
			{"bad zip", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a3@b.co"), ZipCode: strPtr("1234")}, service.ErrInvalidInput},
			{"future birth date", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a4@b.co"), BirthDate: strPtr(future)}, service.ErrInvalidInput},
			{"ancient birth date", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a5@b.co"), BirthDate: strPtr("1899-12-31")}, service.ErrInvalidInput},
			{"garbage birth date", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a6@b.co"), BirthDate: strPtr("31/12/1990")}, service.ErrInvalidInput},
			{"unknown seller", domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("a7@b.co"), SellerID: ptrUUID(uuid.New())}, service.ErrSellerNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				input := tc.input
				_, err := svc.Create(ctx, &input)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})

	t.Run("validation errors name the field", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CustomerInput{Name: strPtr("Ana"), Email: strPtr("z@b.co"), ZipCode: strPtr("abc")})
		var verr *service.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "zipCode", verr.Field)
	})
}

func TestCustomerService_UpdateAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := testutil.TenantContext(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	svc := createCustomerService(db)

	customer, err := svc.Create(ctx, &domain.CustomerInput{
		Name:     strPtr("Carlos"),
		Email:    strPtr("carlos@example.com"),
		City:     strPtr("Recife"),
		SellerID: &seller.ID,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, customer.ID, &domain.CustomerInput{
		City:        strPtr(""),
		ClearSeller: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Carlos", updated.Name, "absent fields are kept")
	assert.Nil(t, updated.City)
	assert.Nil(t, updated.SellerID)

	renamed, err := svc.Update(ctx, customer.ID, &domain.CustomerInput{Email: strPtr("CARLOS@example.com")})
	require.NoError(t, err, "a customer may keep its own email")
	assert.Equal(t, "carlos@example.com", renamed.Email)

	_, err = svc.Update(ctx, uuid.New(), &domain.CustomerInput{})
	assert.ErrorIs(t, err, service.ErrCustomerNotFound)

	model := &domain.Customer{}
	require.NoError(t, db.First(model, "id = ?", customer.ID).Error)
	testutil.CreateTestOpportunity(t, db, model, nil, domain.StageProposal, 10, time.Now())
	assert.ErrorIs(t, svc.Delete(ctx, customer.ID), service.ErrConflict, "customers with opportunities are kept")

	free, err := svc.Create(ctx, &domain.CustomerInput{Name: strPtr("Livre"), Email: strPtr("livre@example.com")})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, free.ID))
	_, err = svc.GetByID(ctx, free.ID)
	assert.ErrorIs(t, err, service.ErrCustomerNotFound)
}

func TestCustomerService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	tenant := testutil.CreateTestTenant(t, db, "Acme")
	ctx := testutil.TenantContext(tenant)
	seller := testutil.CreateTestSeller(t, db, tenant, "Ana")
	svc := createCustomerService(db)

	for _, name := range []string{"Zilda", "Bruno", "Beatriz"} {
		_, err := svc.Create(ctx, &domain.CustomerInput{Name: strPtr(name), Email: strPtr(name + "@example.com")})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, &domain.CustomerInput{Name: strPtr("Abel"), Email: strPtr("abel@example.com"), SellerID: &seller.ID})
	require.NoError(t, err)

	all, err := svc.List(ctx, "", nil)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Abel", "Beatriz", "Bruno", "Zilda"}, names)

	found, err := svc.List(ctx, "b", nil)
	require.NoError(t, err)
	assert.Len(t, found, 3, "matches name or email case-insensitively")

	mine, err := svc.List(ctx, "", &seller.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Abel", mine[0].Name)
}
