// Package round implements the pure round predicates and the pari-mutuel
// settlement math for the prediction engine.
//
// Winners split the pooled stake of a round proportionally to their own
// stake, minus a protocol fee. The fee is waived entirely whenever it would
// leave winners with less than their principal (the principal-protection
// rule), so the computed reward never drops below the winning pool and never
// exceeds the collected total.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are integer-valued in the asset's smallest unit; payouts truncate
// via Floor, so the sum of all claims can never exceed the reward pool.
package round

import (
	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/model"
)

// Bettable reports whether a stake may be placed on r at time now.
// Genesis rounds are never bettable; the window is [start_time, lock_time]
// and both settlement prices must still be unset.
func Bettable(r *model.Round, now int64) bool {
	return !r.IsGenesis &&
		now >= r.StartTime &&
		now <= r.LockTime &&
		r.OpenPrice == nil &&
		r.ClosePrice == nil
}

// Claimable reports whether r settled with a winning side: the round has
// ended, both prices are set, and they differ.
func Claimable(r *model.Round, now int64) bool {
	return now >= r.EndTime &&
		r.OpenPrice != nil &&
		r.ClosePrice != nil &&
		!r.OpenPrice.Equal(*r.ClosePrice)
}

// Refundable reports whether bettors get their exact stake back: either the
// round settled as a draw, or it expired with no close price recorded.
func Refundable(r *model.Round, now int64, graceInterval int64) bool {
	if now >= r.EndTime && r.OpenPrice != nil && r.ClosePrice != nil && r.OpenPrice.Equal(*r.ClosePrice) {
		return true
	}
	return r.ClosePrice == nil && now > r.EndTime+graceInterval
}

// Executable reports whether r is due for settlement: its open price is
// chained in, no close price yet, and now is within [end, end+grace].
func Executable(r *model.Round, now int64, graceInterval int64) bool {
	return now >= r.EndTime &&
		now <= r.EndTime+graceInterval &&
		r.OpenPrice != nil &&
		r.ClosePrice == nil
}

// Expired reports whether the settlement window has passed with the close
// price still unset. An expired round is permanently refundable.
func Expired(r *model.Round, now int64, graceInterval int64) bool {
	return r.ClosePrice == nil && now > r.EndTime+graceInterval
}

// Outcome returns the winning position implied by an open/close price pair.
func Outcome(openPrice, closePrice decimal.Decimal) model.Position {
	switch {
	case closePrice.GreaterThan(openPrice):
		return model.PositionUp
	case closePrice.LessThan(openPrice):
		return model.PositionDown
	default:
		return model.PositionDraw
	}
}

// WinningPool returns the pool staked on the winning side of a settled
// round, or zero for a draw.
func WinningPool(r *model.Round, outcome model.Position) decimal.Decimal {
	switch outcome {
	case model.PositionUp:
		return r.UpAmount
	case model.PositionDown:
		return r.DownAmount
	default:
		return decimal.Zero
	}
}

// Settle computes the reward pool and protocol fee for a round closing at
// closePrice. On a draw both are zero: every bettor becomes refund-eligible
// and no fee is taken. Otherwise fee = total * feeRate (truncated), unless
// the fee would leave winners below their principal, in which case it is
// waived and the full total becomes the reward.
func Settle(r *model.Round, closePrice, feeRate decimal.Decimal) (reward, fee decimal.Decimal, outcome model.Position) {
	outcome = Outcome(*r.OpenPrice, closePrice)
	if outcome == model.PositionDraw {
		return decimal.Zero, decimal.Zero, outcome
	}

	fee = r.TotalAmount.Mul(feeRate).Floor()
	reward = r.TotalAmount.Sub(fee)

	if reward.LessThan(WinningPool(r, outcome)) {
		reward = r.TotalAmount
		fee = decimal.Zero
	}
	return reward, fee, outcome
}

// ClaimAmount computes the amount payable to the holder of bet at time now.
//
//   - Settled with a winner: losers get zero; winners get their proportional
//     share reward * stake / winning_pool, truncated.
//   - Draw or expired: the exact stake back.
//   - Anything else: zero (not yet available).
func ClaimAmount(r *model.Round, bet *model.Bet, now int64, graceInterval int64) decimal.Decimal {
	if Claimable(r, now) {
		outcome := Outcome(*r.OpenPrice, *r.ClosePrice)
		if bet.Position != outcome {
			return decimal.Zero
		}
		pool := WinningPool(r, outcome)
		if pool.IsZero() {
			return decimal.Zero
		}
		return r.RewardAmount.Mul(bet.Amount).Div(pool).Floor()
	}
	if Refundable(r, now, graceInterval) {
		return bet.Amount
	}
	return decimal.Zero
}
