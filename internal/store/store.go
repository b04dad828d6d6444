// Package store defines the persistence interface for the prediction engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/predix/prediction-engine/internal/model"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface over the four logical tables: the
// config singleton, the state singleton, rounds keyed by epoch, and bets
// keyed by (epoch, user).
type Store interface {
	// --- Config singleton ---

	// GetConfig retrieves the market configuration.
	GetConfig(ctx context.Context) (*model.Config, error)

	// SetConfig persists the market configuration.
	SetConfig(ctx context.Context, cfg *model.Config) error

	// --- State singleton ---

	// GetState retrieves the global engine state.
	GetState(ctx context.Context) (*model.State, error)

	// SetState persists the global engine state.
	SetState(ctx context.Context, st *model.State) error

	// --- Rounds ---

	// GetRound retrieves the round for an epoch.
	GetRound(ctx context.Context, epoch uint64) (*model.Round, error)

	// PutRound creates or updates a round record.
	PutRound(ctx context.Context, r *model.Round) error

	// --- Bets ---

	// GetBet retrieves one user's bet for an epoch.
	GetBet(ctx context.Context, epoch uint64, user string) (*model.Bet, error)

	// PutBet creates or updates a bet record.
	PutBet(ctx context.Context, b *model.Bet) error
}
