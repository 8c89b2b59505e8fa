package client_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/client"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// fakeAPI is an in-memory OpportunityAPI with overridable behavior per call
type fakeAPI struct {
	mu sync.Mutex

	list    []domain.OpportunityDTO
	listErr error
	filters []client.Filters

	createFn func(req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error)
	updateFn func(id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error)
	moveFn   func(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error)
	deleteFn func(id uuid.UUID) error

	moveCalls int
}

func (f *fakeAPI) ListOpportunities(ctx context.Context, filters client.Filters) ([]domain.OpportunityDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filters)
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.OpportunityDTO, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeAPI) CreateOpportunity(ctx context.Context, req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	return f.createFn(req)
}

func (f *fakeAPI) UpdateOpportunity(ctx context.Context, id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error) {
	return f.updateFn(id, req)
}

func (f *fakeAPI) MoveOpportunity(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
	f.mu.Lock()
	f.moveCalls++
	fn := f.moveFn
	f.mu.Unlock()
	return fn(ctx, id, stage)
}

func (f *fakeAPI) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	return f.deleteFn(id)
}

func (f *fakeAPI) MoveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moveCalls
}

func opportunity(stage domain.OpportunityStage, value float64) domain.OpportunityDTO {
	return domain.OpportunityDTO{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Stage:      stage,
		TotalValue: value,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func loadedStore(t *testing.T, api *fakeAPI, ops ...domain.OpportunityDTO) *client.OpportunityStore {
	t.Helper()
	api.list = ops
	store := client.NewOpportunityStore(api, zap.NewNop())
	require.NoError(t, store.Fetch(context.Background(), client.Filters{}))
	return store
}

func TestOpportunityStore_Fetch(t *testing.T) {
	t.Run("success replaces the list", func(t *testing.T) {
		first := opportunity(domain.StageProposal, 100)
		api := &fakeAPI{list: []domain.OpportunityDTO{first}}
		store := client.NewOpportunityStore(api, zap.NewNop())

		sellerID := uuid.New()
		err := store.Fetch(context.Background(), client.Filters{SellerID: &sellerID, Stage: domain.StageProposal})
		require.NoError(t, err)

		ops := store.Opportunities()
		require.Len(t, ops, 1)
		assert.Equal(t, first.ID, ops[0].ID)
		assert.Empty(t, store.Err())
		assert.False(t, store.Loading())

		require.Len(t, api.filters, 1)
		assert.Equal(t, &sellerID, api.filters[0].SellerID)
		assert.Equal(t, domain.StageProposal, api.filters[0].Stage)
	})

	t.Run("failure keeps the list and sets error", func(t *testing.T) {
		api := &fakeAPI{}
		store := loadedStore(t, api, opportunity(domain.StageProposal, 100))

		api.listErr = &client.APIError{Status: http.StatusInternalServerError, Message: "database unavailable"}
		err := store.Fetch(context.Background(), client.Filters{})
		require.Error(t, err)

		assert.Len(t, store.Opportunities(), 1)
		assert.Equal(t, "database unavailable", store.Err())
	})

	t.Run("transport error message is used as is", func(t *testing.T) {
		api := &fakeAPI{listErr: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")}
		store := client.NewOpportunityStore(api, zap.NewNop())

		require.Error(t, store.Fetch(context.Background(), client.Filters{}))
		assert.Equal(t, "dial tcp 127.0.0.1:1: connect: connection refused", store.Err())
	})

	t.Run("error is cleared by the next operation", func(t *testing.T) {
		api := &fakeAPI{listErr: errors.New("boom")}
		store := client.NewOpportunityStore(api, zap.NewNop())
		require.Error(t, store.Fetch(context.Background(), client.Filters{}))
		require.Equal(t, "boom", store.Err())

		api.listErr = nil
		require.NoError(t, store.Fetch(context.Background(), client.Filters{}))
		assert.Empty(t, store.Err())
	})
}

func TestOpportunityStore_Create(t *testing.T) {
	t.Run("failing server leaves list unchanged", func(t *testing.T) {
		existing := opportunity(domain.StageFirstContact, 10)
		api := &fakeAPI{
			createFn: func(domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
				return nil, &client.APIError{Status: http.StatusNotFound, Message: "Customer not found"}
			},
		}
		store := loadedStore(t, api, existing)

		created, err := store.Create(context.Background(), domain.CreateOpportunityRequest{CustomerID: uuid.New()})
		assert.Nil(t, created)
		require.Error(t, err)

		ops := store.Opportunities()
		require.Len(t, ops, 1)
		assert.Equal(t, existing.ID, ops[0].ID)
		assert.Equal(t, "Customer not found", store.Err())
	})

	t.Run("success prepends the server version", func(t *testing.T) {
		existing := opportunity(domain.StageFirstContact, 10)
		fromServer := opportunity(domain.StageProposal, 250)
		api := &fakeAPI{
			createFn: func(req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
				out := fromServer
				out.CustomerID = req.CustomerID
				return &out, nil
			},
		}
		store := loadedStore(t, api, existing)

		customerID := uuid.New()
		created, err := store.Create(context.Background(), domain.CreateOpportunityRequest{CustomerID: customerID})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, customerID, created.CustomerID)

		ops := store.Opportunities()
		require.Len(t, ops, 2)
		assert.Equal(t, fromServer.ID, ops[0].ID)
		assert.Equal(t, existing.ID, ops[1].ID)
		assert.Empty(t, store.Err())
	})
}

func TestOpportunityStore_Update(t *testing.T) {
	a := opportunity(domain.StageFirstContact, 10)
	b := opportunity(domain.StageProposal, 20)
	notes := "follow up on monday"

	api := &fakeAPI{
		updateFn: func(id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error) {
			if id != b.ID {
				return nil, &client.APIError{Status: http.StatusNotFound, Message: "Opportunity not found"}
			}
			out := b.Clone()
			out.Notes = req.Notes
			out.TotalValue = 99
			return &out, nil
		},
	}
	store := loadedStore(t, api, a, b)

	updated, err := store.Update(context.Background(), b.ID, domain.UpdateOpportunityRequest{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)

	ops := store.Opportunities()
	require.Len(t, ops, 2)
	assert.Equal(t, a.ID, ops[0].ID)
	assert.Equal(t, b.ID, ops[1].ID)
	assert.Equal(t, 99.0, ops[1].TotalValue)

	missing, err := store.Update(context.Background(), uuid.New(), domain.UpdateOpportunityRequest{})
	assert.Nil(t, missing)
	require.Error(t, err)
	assert.Equal(t, "Opportunity not found", store.Err())
}

func TestOpportunityStore_Move(t *testing.T) {
	t.Run("unknown id makes no network call", func(t *testing.T) {
		api := &fakeAPI{}
		store := loadedStore(t, api, opportunity(domain.StageProposal, 10))

		moved, err := store.Move(context.Background(), uuid.New(), domain.StageNegotiation)
		assert.Nil(t, moved)
		assert.ErrorIs(t, err, client.ErrOpportunityNotFound)
		assert.Equal(t, "opportunity not found", store.Err())
		assert.Equal(t, 0, api.MoveCalls())
	})

	t.Run("server failure restores the prior stage", func(t *testing.T) {
		original := opportunity(domain.StageProposal, 300)
		api := &fakeAPI{
			moveFn: func(context.Context, uuid.UUID, domain.OpportunityStage) (*domain.OpportunityDTO, error) {
				return nil, &client.APIError{Status: http.StatusBadRequest, Message: "Invalid stage"}
			},
		}
		store := loadedStore(t, api, original)

		moved, err := store.Move(context.Background(), original.ID, domain.StageNegotiation)
		assert.Nil(t, moved)
		require.Error(t, err)

		ops := store.Opportunities()
		require.Len(t, ops, 1)
		assert.Equal(t, original, ops[0])
		assert.Equal(t, "Invalid stage", store.Err())
	})

	t.Run("success replaces entry with server version", func(t *testing.T) {
		original := opportunity(domain.StageAwaitingPayment, 1200)
		closedAt := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
		api := &fakeAPI{
			moveFn: func(_ context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
				out := original.Clone()
				out.Stage = stage
				out.ClosedAt = &closedAt
				return &out, nil
			},
		}
		store := loadedStore(t, api, original)

		moved, err := store.Move(context.Background(), original.ID, domain.StageClosedWon)
		require.NoError(t, err)
		require.NotNil(t, moved)
		assert.Equal(t, domain.StageClosedWon, moved.Stage)

		ops := store.Opportunities()
		require.Len(t, ops, 1)
		assert.Equal(t, domain.StageClosedWon, ops[0].Stage)
		require.NotNil(t, ops[0].ClosedAt)
		assert.True(t, closedAt.Equal(*ops[0].ClosedAt))
		assert.Empty(t, store.Err())
	})

	t.Run("optimistic stage is visible before the server answers", func(t *testing.T) {
		original := opportunity(domain.StageFirstContact, 50)
		var store *client.OpportunityStore
		var seen domain.OpportunityStage
		api := &fakeAPI{
			moveFn: func(_ context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
				seen = store.Opportunities()[0].Stage
				out := original.Clone()
				out.Stage = stage
				return &out, nil
			},
		}
		store = loadedStore(t, api, original)

		var states []domain.OpportunityStage
		unsubscribe := store.Subscribe(func(s client.State) {
			if len(s.Opportunities) == 1 {
				states = append(states, s.Opportunities[0].Stage)
			}
		})
		defer unsubscribe()

		_, err := store.Move(context.Background(), original.ID, domain.StageProposal)
		require.NoError(t, err)

		assert.Equal(t, domain.StageProposal, seen)
		require.NotEmpty(t, states)
		assert.Equal(t, domain.StageProposal, states[0])
	})

	t.Run("moves of the same id run one at a time", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		original := opportunity(domain.StageFirstContact, 100)
		release := make(chan struct{})
		started := make(chan struct{}, 2)

		var mu sync.Mutex
		var events []string
		record := func(e string) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}

		var store *client.OpportunityStore
		api := &fakeAPI{
			moveFn: func(_ context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
				record("start " + string(stage))
				started <- struct{}{}
				if stage == domain.StageProposal {
					<-release
					record("end " + string(stage))
					return nil, &client.APIError{Status: http.StatusInternalServerError, Message: "timeout"}
				}
				out := store.Opportunities()[0]
				record("end " + string(stage))
				return &out, nil
			},
		}
		store = loadedStore(t, api, original)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Move(context.Background(), original.ID, domain.StageProposal)
		}()
		<-started

		go func() {
			defer wg.Done()
			_, _ = store.Move(context.Background(), original.ID, domain.StageNegotiation)
		}()

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, api.MoveCalls())
		close(release)
		wg.Wait()

		assert.Equal(t, []string{
			"start proposal",
			"end proposal",
			"start negotiation",
			"end negotiation",
		}, events)
		assert.Equal(t, domain.StageNegotiation, store.Opportunities()[0].Stage)
		assert.Empty(t, store.Err())
	})
}

func TestOpportunityStore_Remove(t *testing.T) {
	a := opportunity(domain.StageFirstContact, 10)
	b := opportunity(domain.StageProposal, 20)
	api := &fakeAPI{
		deleteFn: func(id uuid.UUID) error {
			if id == a.ID {
				return nil
			}
			return &client.APIError{Status: http.StatusNotFound, Message: "Opportunity not found"}
		},
	}
	store := loadedStore(t, api, a, b)

	require.NoError(t, store.Remove(context.Background(), a.ID))
	ops := store.Opportunities()
	require.Len(t, ops, 1)
	assert.Equal(t, b.ID, ops[0].ID)

	require.Error(t, store.Remove(context.Background(), uuid.New()))
	assert.Len(t, store.Opportunities(), 1)
	assert.Equal(t, "Opportunity not found", store.Err())
}

func TestOpportunityStore_DerivedViews(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api,
		opportunity(domain.StageFirstContact, 500),
		opportunity(domain.StageProposal, 200),
		opportunity(domain.StageClosedWon, 1000),
	)

	totals := store.TotalsByStage()
	require.Len(t, totals, 6)
	assert.Equal(t, 500.0, totals[domain.StageFirstContact])
	assert.Equal(t, 200.0, totals[domain.StageProposal])
	assert.Equal(t, 1000.0, totals[domain.StageClosedWon])
	assert.Equal(t, 0.0, totals[domain.StageNegotiation])
	assert.Equal(t, 0.0, totals[domain.StageAwaitingPayment])
	assert.Equal(t, 0.0, totals[domain.StageClosedLost])

	grouped := store.GroupedByStage()
	require.Len(t, grouped, 6)
	assert.Len(t, grouped[domain.StageProposal], 1)
	assert.NotNil(t, grouped[domain.StageClosedLost])
	assert.Empty(t, grouped[domain.StageClosedLost])

	// views follow list changes
	api.list = []domain.OpportunityDTO{opportunity(domain.StageClosedLost, 75)}
	require.NoError(t, store.Fetch(context.Background(), client.Filters{}))
	assert.Equal(t, 75.0, store.TotalsByStage()[domain.StageClosedLost])
	assert.Equal(t, 0.0, store.TotalsByStage()[domain.StageClosedWon])
	assert.Len(t, store.GroupedByStage()[domain.StageClosedLost], 1)

	empty := client.NewOpportunityStore(&fakeAPI{}, nil)
	assert.Len(t, empty.TotalsByStage(), 6)
	assert.Len(t, empty.GroupedByStage(), 6)
}

func TestOpportunityStore_Subscribe(t *testing.T) {
	api := &fakeAPI{list: []domain.OpportunityDTO{opportunity(domain.StageProposal, 1)}}
	store := client.NewOpportunityStore(api, zap.NewNop())

	var calls int
	var sawLoading bool
	unsubscribe := store.Subscribe(func(s client.State) {
		calls++
		if s.Loading {
			sawLoading = true
		}
	})

	require.NoError(t, store.Fetch(context.Background(), client.Filters{}))
	assert.Equal(t, 2, calls)
	assert.True(t, sawLoading)

	unsubscribe()
	unsubscribe()
	require.NoError(t, store.Fetch(context.Background(), client.Filters{}))
	assert.Equal(t, 2, calls)
}

func TestOpportunityStore_ReturnedListIsACopy(t *testing.T) {
	api := &fakeAPI{}
	store := loadedStore(t, api, opportunity(domain.StageProposal, 10))

	ops := store.Opportunities()
	ops[0].Stage = domain.StageClosedLost

	assert.Equal(t, domain.StageProposal, store.Opportunities()[0].Stage)
}
