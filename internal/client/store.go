package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/salescrm/crm-api/internal/pipeline"
	"go.uber.org/zap"
)

// ErrOpportunityNotFound is returned by Move when the id is not in the local list
var ErrOpportunityNotFound = errors.New("opportunity not found")

// State is a copy of the store contents handed to listeners
type State struct {
	Opportunities []domain.OpportunityDTO
	Err           string
	Loading       bool
}

// Listener is notified after every state change
type Listener func(State)

// OpportunityStore keeps the client-side list of opportunities in sync with the API.
// Stage moves are applied optimistically and rolled back when the server rejects them.
type OpportunityStore struct {
	api    OpportunityAPI
	logger *zap.Logger

	mu            sync.Mutex
	opportunities []domain.OpportunityDTO
	err           string
	pending       int
	version       uint64

	viewVersion uint64
	grouped     map[domain.OpportunityStage][]domain.OpportunityDTO
	totals      map[domain.OpportunityStage]float64

	listeners      map[int]Listener
	nextListenerID int

	moves keyedMutex
}

// NewOpportunityStore creates an empty store backed by api
func NewOpportunityStore(api OpportunityAPI, logger *zap.Logger) *OpportunityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpportunityStore{
		api:           api,
		logger:        logger,
		opportunities: []domain.OpportunityDTO{},
		listeners:     make(map[int]Listener),
		viewVersion:   ^uint64(0),
	}
}

// Subscribe registers fn for state changes and returns a function that removes it
func (s *OpportunityStore) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Opportunities returns a copy of the current list
func (s *OpportunityStore) Opportunities() []domain.OpportunityDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.opportunities)
}

// Err returns the message of the last failed operation, or "" when the last operation succeeded
func (s *OpportunityStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether a request is in flight
func (s *OpportunityStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// GroupedByStage buckets the current list by stage; all six stages are present
func (s *OpportunityStore) GroupedByStage() map[domain.OpportunityStage][]domain.OpportunityDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshViewsLocked()

	out := make(map[domain.OpportunityStage][]domain.OpportunityDTO, len(s.grouped))
	for stage, ops := range s.grouped {
		out[stage] = cloneList(ops)
	}
	return out
}

// TotalsByStage sums the current list by stage; all six stages are present
func (s *OpportunityStore) TotalsByStage() map[domain.OpportunityStage]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshViewsLocked()

	out := make(map[domain.OpportunityStage]float64, len(s.totals))
	for stage, v := range s.totals {
		out[stage] = v
	}
	return out
}

// Fetch replaces the list with the server's. On failure the list is left as it was.
func (s *OpportunityStore) Fetch(ctx context.Context, filters Filters) error {
	s.begin()

	ops, err := s.api.ListOpportunities(ctx, filters)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.err = ErrorMessage(err)
	} else {
		s.opportunities = cloneList(ops)
		s.version++
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Debug("fetch opportunities failed", zap.Error(err))
		return err
	}
	return nil
}

// Create posts a new opportunity and prepends the server's version to the list
func (s *OpportunityStore) Create(ctx context.Context, req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	s.begin()

	created, err := s.api.CreateOpportunity(ctx, req)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.err = ErrorMessage(err)
	} else {
		list := make([]domain.OpportunityDTO, 0, len(s.opportunities)+1)
		list = append(list, created.Clone())
		list = append(list, s.opportunities...)
		s.opportunities = list
		s.version++
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return nil, err
	}
	out := created.Clone()
	return &out, nil
}

// Update sends a partial update and replaces the entry in place with the server's version
func (s *OpportunityStore) Update(ctx context.Context, id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error) {
	s.begin()

	updated, err := s.api.UpdateOpportunity(ctx, id, req)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.err = ErrorMessage(err)
	} else if i := s.indexLocked(id); i >= 0 {
		s.replaceLocked(i, updated.Clone())
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return nil, err
	}
	out := updated.Clone()
	return &out, nil
}

// Move changes the stage of an opportunity. The new stage is visible to listeners
// before the server answers; a rejected move restores the entry as it was when
// this call started. Moves of the same opportunity run one at a time.
func (s *OpportunityStore) Move(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
	unlock := s.moves.Lock(id)
	defer unlock()

	s.mu.Lock()
	s.err = ""
	i := s.indexLocked(id)
	if i < 0 {
		s.err = ErrOpportunityNotFound.Error()
		s.mu.Unlock()
		s.notify()
		return nil, ErrOpportunityNotFound
	}
	snapshot := s.opportunities[i].Clone()
	optimistic := snapshot.Clone()
	optimistic.Stage = stage
	s.replaceLocked(i, optimistic)
	s.pending++
	s.mu.Unlock()
	s.notify()

	moved, err := s.api.MoveOpportunity(ctx, id, stage)

	s.mu.Lock()
	s.pending--
	// the entry may have been removed while the request was in flight
	if j := s.indexLocked(id); j >= 0 {
		if err != nil {
			s.replaceLocked(j, snapshot)
		} else {
			s.replaceLocked(j, moved.Clone())
		}
	}
	if err != nil {
		s.err = ErrorMessage(err)
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Debug("move opportunity rolled back",
			zap.String("opportunity_id", id.String()),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return nil, err
	}
	out := moved.Clone()
	return &out, nil
}

// Remove deletes the opportunity on the server and drops it from the list
func (s *OpportunityStore) Remove(ctx context.Context, id uuid.UUID) error {
	s.begin()

	err := s.api.DeleteOpportunity(ctx, id)

	s.mu.Lock()
	s.pending--
	if err != nil {
		s.err = ErrorMessage(err)
	} else if i := s.indexLocked(id); i >= 0 {
		list := make([]domain.OpportunityDTO, 0, len(s.opportunities)-1)
		list = append(list, s.opportunities[:i]...)
		list = append(list, s.opportunities[i+1:]...)
		s.opportunities = list
		s.version++
	}
	s.mu.Unlock()
	s.notify()

	return err
}

func (s *OpportunityStore) begin() {
	s.mu.Lock()
	s.err = ""
	s.pending++
	s.mu.Unlock()
	s.notify()
}

func (s *OpportunityStore) indexLocked(id uuid.UUID) int {
	for i := range s.opportunities {
		if s.opportunities[i].ID == id {
			return i
		}
	}
	return -1
}

// replaceLocked swaps entry i on a fresh slice so lists already handed out stay untouched
func (s *OpportunityStore) replaceLocked(i int, op domain.OpportunityDTO) {
	list := make([]domain.OpportunityDTO, len(s.opportunities))
	copy(list, s.opportunities)
	list[i] = op
	s.opportunities = list
	s.version++
}

func (s *OpportunityStore) refreshViewsLocked() {
	if s.viewVersion == s.version {
		return
	}
	s.grouped = pipeline.GroupByStage(s.opportunities)
	s.totals = pipeline.TotalsByStage(s.opportunities)
	s.viewVersion = s.version
}

func (s *OpportunityStore) notify() {
	s.mu.Lock()
	state := State{
		Opportunities: cloneList(s.opportunities),
		Err:           s.err,
		Loading:       s.pending > 0,
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func cloneList(ops []domain.OpportunityDTO) []domain.OpportunityDTO {
	out := make([]domain.OpportunityDTO, len(ops))
	for i := range ops {
		out[i] = ops[i].Clone()
	}
	return out
}

// keyedMutex hands out one mutex per id and forgets it once nobody holds or waits on it
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
