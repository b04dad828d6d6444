// Package model defines the core domain types shared across the prediction
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/asset"
)

// Position is the side of a bet.
type Position string

const (
	PositionUp   Position = "up"
	PositionDown Position = "down"

	// PositionDraw is never a valid bet side; it only appears as a
	// settlement outcome when close price equals open price.
	PositionDraw Position = "draw"
)

// Valid reports whether p is a side a user may stake on.
func (p Position) Valid() bool {
	return p == PositionUp || p == PositionDown
}

var (
	ErrInvalidFeeRate       = errors.New("model: fee rate must be within [0, 1]")
	ErrInvalidGraceInterval = errors.New("model: grace interval must not exceed round interval")
)

// Config holds the operating parameters of the market. It is a persisted
// singleton, seeded at first boot and mutated only through UpdateConfig.
type Config struct {
	OwnerAddr    string     `json:"owner_addr" db:"owner_addr"`
	OperatorAddr string     `json:"operator_addr" db:"operator_addr"`
	TreasuryAddr string     `json:"treasury_addr" db:"treasury_addr"`
	BetAsset     asset.Info `json:"bet_asset" db:"bet_asset"`

	// Oracle endpoint and the symbol pair it is asked to price.
	OracleURL   string `json:"oracle_url" db:"oracle_url"`
	BaseSymbol  string `json:"base_symbol" db:"base_symbol"`
	QuoteSymbol string `json:"quote_symbol" db:"quote_symbol"`

	FeeRate       decimal.Decimal `json:"fee_rate" db:"fee_rate"`
	Interval      int64           `json:"interval" db:"interval"`             // round length in seconds
	GraceInterval int64           `json:"grace_interval" db:"grace_interval"` // settlement window after end_time
}

// Validate checks the invariants 0 <= fee_rate <= 1 and grace <= interval.
func (c *Config) Validate() error {
	one := decimal.NewFromInt(1)
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThan(one) {
		return ErrInvalidFeeRate
	}
	if c.GraceInterval > c.Interval {
		return ErrInvalidGraceInterval
	}
	return nil
}

// State is the single mutable global record: the epoch counter, the
// accumulated protocol fee, and the pause flag.
type State struct {
	Epoch    uint64          `json:"epoch" db:"epoch"`
	TotalFee decimal.Decimal `json:"total_fee" db:"total_fee"`
	Paused   bool            `json:"paused" db:"paused"`
}

// Round describes one epoch's betting window, pools, and settlement prices.
// OpenPrice is written retroactively by the call that settles the previous
// round; ClosePrice by this round's own settlement. Once both prices and
// RewardAmount are fixed the round is immutable.
type Round struct {
	Epoch        uint64           `json:"epoch" db:"epoch"`
	StartTime    int64            `json:"start_time" db:"start_time"`
	LockTime     int64            `json:"lock_time" db:"lock_time"`
	EndTime      int64            `json:"end_time" db:"end_time"`
	OpenPrice    *decimal.Decimal `json:"open_price,omitempty" db:"open_price"`
	ClosePrice   *decimal.Decimal `json:"close_price,omitempty" db:"close_price"`
	TotalAmount  decimal.Decimal  `json:"total_amount" db:"total_amount"`
	RewardAmount decimal.Decimal  `json:"reward_amount" db:"reward_amount"`
	UpAmount     decimal.Decimal  `json:"up_amount" db:"up_amount"`
	DownAmount   decimal.Decimal  `json:"down_amount" db:"down_amount"`
	IsGenesis    bool             `json:"is_genesis" db:"is_genesis"`
}

// Bet is one user's stake in one round. At most one Bet exists per
// (epoch, user); Claimed flips false→true exactly once.
type Bet struct {
	Epoch    uint64          `json:"epoch" db:"epoch"`
	UserAddr string          `json:"user_addr" db:"user_addr"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Position Position        `json:"position" db:"position"`
	Claimed  bool            `json:"claimed" db:"claimed"`
}
