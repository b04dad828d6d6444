package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/predix/prediction-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	config *model.Config
	state  *model.State
	rounds map[uint64]*model.Round
	bets   map[string]*model.Bet
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds: make(map[uint64]*model.Round),
		bets:   make(map[string]*model.Bet),
	}
}

func betKey(epoch uint64, user string) string {
	return fmt.Sprintf("%d|%s", epoch, user)
}

func (s *MemoryStore) GetConfig(_ context.Context) (*model.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, fmt.Errorf("config: %w", ErrNotFound)
	}
	copy := *s.config
	return &copy, nil
}

func (s *MemoryStore) SetConfig(_ context.Context, cfg *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *cfg
	s.config = &copy
	return nil
}

func (s *MemoryStore) GetState(_ context.Context) (*model.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, fmt.Errorf("state: %w", ErrNotFound)
	}
	copy := *s.state
	return &copy, nil
}

func (s *MemoryStore) SetState(_ context.Context, st *model.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *st
	s.state = &copy
	return nil
}

func (s *MemoryStore) GetRound(_ context.Context, epoch uint64) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[epoch]
	if !ok {
		return nil, fmt.Errorf("round %d: %w", epoch, ErrNotFound)
	}
	copy := *r
	return &copy, nil
}

func (s *MemoryStore) PutRound(_ context.Context, r *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	s.rounds[r.Epoch] = &copy
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, epoch uint64, user string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[betKey(epoch, user)]
	if !ok {
		return nil, fmt.Errorf("bet %d/%s: %w", epoch, user, ErrNotFound)
	}
	copy := *b
	return &copy, nil
}

func (s *MemoryStore) PutBet(_ context.Context, b *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *b
	s.bets[betKey(b.Epoch, b.UserAddr)] = &copy
	return nil
}
