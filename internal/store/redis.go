package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predix/prediction-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for rounds and bets. Writes go to the primary store first and then
// refresh the cache; config and state pass through untouched since every
// mutating operation reads them anyway.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Passthrough singletons ---

func (s *CachedStore) GetConfig(ctx context.Context) (*model.Config, error) {
	return s.primary.GetConfig(ctx)
}

func (s *CachedStore) SetConfig(ctx context.Context, cfg *model.Config) error {
	return s.primary.SetConfig(ctx, cfg)
}

func (s *CachedStore) GetState(ctx context.Context) (*model.State, error) {
	return s.primary.GetState(ctx)
}

func (s *CachedStore) SetState(ctx context.Context, st *model.State) error {
	return s.primary.SetState(ctx, st)
}

// --- Rounds: read-through, refresh on write ---

func (s *CachedStore) GetRound(ctx context.Context, epoch uint64) (*model.Round, error) {
	data, err := s.rdb.Get(ctx, roundKey(epoch)).Bytes()
	if err == nil {
		var r model.Round
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetRound(ctx, epoch)
	if err != nil {
		return nil, err
	}
	s.cacheRound(ctx, r)
	return r, nil
}

func (s *CachedStore) PutRound(ctx context.Context, r *model.Round) error {
	if err := s.primary.PutRound(ctx, r); err != nil {
		return err
	}
	s.cacheRound(ctx, r)
	return nil
}

// --- Bets: read-through, refresh on write ---

func (s *CachedStore) GetBet(ctx context.Context, epoch uint64, user string) (*model.Bet, error) {
	data, err := s.rdb.Get(ctx, betCacheKey(epoch, user)).Bytes()
	if err == nil {
		var b model.Bet
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	b, err := s.primary.GetBet(ctx, epoch, user)
	if err != nil {
		return nil, err
	}
	s.cacheBet(ctx, b)
	return b, nil
}

func (s *CachedStore) PutBet(ctx context.Context, b *model.Bet) error {
	if err := s.primary.PutBet(ctx, b); err != nil {
		return err
	}
	s.cacheBet(ctx, b)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheRound(ctx context.Context, r *model.Round) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, roundKey(r.Epoch), data, s.ttl)
	}
}

func (s *CachedStore) cacheBet(ctx context.Context, b *model.Bet) {
	if data, err := json.Marshal(b); err == nil {
		s.rdb.Set(ctx, betCacheKey(b.Epoch, b.UserAddr), data, s.ttl)
	}
}

func roundKey(epoch uint64) string { return fmt.Sprintf("round:%d", epoch) }

func betCacheKey(epoch uint64, user string) string {
	return fmt.Sprintf("bet:%d:%s", epoch, user)
}
