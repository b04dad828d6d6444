package engine

import (
	"errors"
	"net/http"

	"github.com/predix/prediction-engine/internal/asset"
	"github.com/predix/prediction-engine/internal/model"
	"github.com/predix/prediction-engine/internal/store"
)

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("engine: unauthorized")

	// ErrAlreadyRunning is returned when StartGenesisRound is called on a
	// market that is not paused.
	ErrAlreadyRunning = errors.New("engine: market already running")

	// ErrAlreadyPaused is returned when Pause is called on a paused market.
	ErrAlreadyPaused = errors.New("engine: market already paused")

	// ErrPaused is returned when an operation requires an active market.
	ErrPaused = errors.New("engine: market is paused")

	// ErrRoundNotBettable is returned when a stake arrives outside the
	// betting window, on a genesis round, or on a priced round.
	ErrRoundNotBettable = errors.New("engine: round not bettable")

	// ErrAlreadyBet is returned on a second bet for the same (epoch, user).
	ErrAlreadyBet = errors.New("engine: already bet in this round")

	// ErrInvalidPosition is returned for a side other than up or down.
	ErrInvalidPosition = errors.New("engine: position must be up or down")

	// ErrInvalidAmount is returned for a non-positive stake.
	ErrInvalidAmount = errors.New("engine: bet amount must be positive")

	// ErrCannotExecute is a timing precondition failure: the round due for
	// settlement is not inside its settlement window. The operator should
	// simply retry later; this is distinct from expiry, which is terminal.
	ErrCannotExecute = errors.New("engine: round cannot be executed")

	// ErrAlreadyClaimed is returned when a bet's payout was already taken.
	ErrAlreadyClaimed = errors.New("engine: already claimed")

	// ErrNothingToClaim is returned when the computed claim amount is zero:
	// the bet lost, or the round is not yet settled.
	ErrNothingToClaim = errors.New("engine: nothing to claim")

	// ErrNothingToWithdraw is returned when no fee has accumulated.
	ErrNothingToWithdraw = errors.New("engine: nothing to withdraw")
)

// statusForError maps engine errors onto HTTP status codes in one place so
// every handler reports the taxonomy consistently.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPosition),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidFeeRate),
		errors.Is(err, model.ErrInvalidGraceInterval),
		errors.Is(err, asset.ErrInvalidAsset),
		errors.Is(err, asset.ErrFundsMismatch),
		errors.Is(err, asset.ErrInvalidDescriptor):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrAlreadyPaused),
		errors.Is(err, ErrPaused),
		errors.Is(err, ErrRoundNotBettable),
		errors.Is(err, ErrAlreadyBet),
		errors.Is(err, ErrCannotExecute),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrNothingToClaim),
		errors.Is(err, ErrNothingToWithdraw):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
