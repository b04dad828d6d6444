// Package engine implements the round lifecycle controller: round creation,
// the betting window, price-based settlement, fee accounting, refund and
// expiry handling, and the bootstrap/pause control loop.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/asset"
	"github.com/predix/prediction-engine/internal/metrics"
	"github.com/predix/prediction-engine/internal/model"
	"github.com/predix/prediction-engine/internal/oracle"
	"github.com/predix/prediction-engine/internal/round"
	"github.com/predix/prediction-engine/internal/store"
)

// Service drives the round lifecycle. A mutex serializes every mutating
// operation so each entry point runs to completion against a consistent
// view, matching the single-caller transactional model of the host.
type Service struct {
	store   store.Store
	oracle  oracle.Source
	gateway asset.Gateway
	hub     *WSHub // optional WebSocket hub for lifecycle broadcasts

	mu    sync.Mutex
	clock func() int64
}

// NewService creates a lifecycle controller. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, src oracle.Source, gw asset.Gateway, hub *WSHub) *Service {
	return &Service{
		store:   st,
		oracle:  src,
		gateway: gw,
		hub:     hub,
		clock:   func() int64 { return time.Now().Unix() },
	}
}

// SetClock replaces the time source. Tests use this to drive irregular
// call timing; the clock must be monotonically non-decreasing.
func (s *Service) SetClock(fn func() int64) {
	s.clock = fn
}

// Bootstrap seeds the config and state singletons on first boot. A market
// starts paused at epoch 0 with no fee accumulated; the owner opens it with
// StartGenesisRound. Existing persisted config is left untouched.
func (s *Service) Bootstrap(ctx context.Context, cfg *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.store.SetConfig(ctx, cfg); err != nil {
		return err
	}
	return s.store.SetState(ctx, &model.State{
		Epoch:    0,
		TotalFee: decimal.Zero,
		Paused:   true,
	})
}

// StartGenesisRound bootstraps the round chain: a backdated genesis round
// at epoch+1 (already closed relative to now, open price 0) and the first
// real betting round at epoch+2. Owner-only, and only while paused.
func (s *Service) StartGenesisRound(ctx context.Context, sender string, now int64) (*model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, st, err := s.configAndState(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(cfg, sender, roleOwner); err != nil {
		return nil, err
	}
	if !st.Paused {
		return nil, ErrAlreadyRunning
	}

	openPrice := decimal.Zero
	genesis := &model.Round{
		Epoch:        st.Epoch + 1,
		StartTime:    now - cfg.Interval,
		LockTime:     now,
		EndTime:      now + cfg.Interval,
		OpenPrice:    &openPrice,
		TotalAmount:  decimal.Zero,
		RewardAmount: decimal.Zero,
		UpAmount:     decimal.Zero,
		DownAmount:   decimal.Zero,
		IsGenesis:    true,
	}
	betting := newRound(st.Epoch+2, now, cfg.Interval)

	if err := s.store.PutRound(ctx, genesis); err != nil {
		return nil, err
	}
	if err := s.store.PutRound(ctx, betting); err != nil {
		return nil, err
	}

	st.Epoch += 2
	st.Paused = false
	if err := s.store.SetState(ctx, st); err != nil {
		return nil, err
	}

	slog.Info("genesis round started",
		"genesis_epoch", genesis.Epoch,
		"betting_epoch", betting.Epoch,
		"lock_time", betting.LockTime,
	)
	s.broadcast(WSMessage{Type: "genesis_started", Epoch: betting.Epoch})

	return st, nil
}

// Bet stakes amount on position in the currently open betting round. The
// inbound deposit is validated against the configured asset; the value
// transfer itself is settled by the surrounding receipt mechanism.
func (s *Service) Bet(ctx context.Context, sender string, position model.Position, in asset.Inbound, now int64) (*model.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, st, err := s.configAndState(ctx)
	if err != nil {
		return nil, err
	}
	if st.Paused {
		return nil, ErrPaused
	}
	if !position.Valid() {
		return nil, ErrInvalidPosition
	}

	amount, err := cfg.BetAsset.ValidateInbound(in)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	r, err := s.store.GetRound(ctx, st.Epoch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoundNotBettable
		}
		return nil, err
	}
	if !round.Bettable(r, now) {
		return nil, ErrRoundNotBettable
	}

	if _, err := s.store.GetBet(ctx, st.Epoch, sender); err == nil {
		return nil, ErrAlreadyBet
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	r.TotalAmount = r.TotalAmount.Add(amount)
	if position == model.PositionUp {
		r.UpAmount = r.UpAmount.Add(amount)
	} else {
		r.DownAmount = r.DownAmount.Add(amount)
	}

	bet := &model.Bet{
		Epoch:    st.Epoch,
		UserAddr: sender,
		Amount:   amount,
		Position: position,
		Claimed:  false,
	}

	if err := s.store.PutRound(ctx, r); err != nil {
		return nil, err
	}
	if err := s.store.PutBet(ctx, bet); err != nil {
		return nil, err
	}

	metrics.BetsTotal.WithLabelValues(string(position)).Inc()
	metrics.BetVolume.WithLabelValues(string(position)).Add(amount.InexactFloat64())

	slog.Info("bet placed",
		"epoch", st.Epoch,
		"user", sender,
		"position", position,
		"amount", amount.String(),
	)
	s.broadcast(WSMessage{
		Type:     "bet_placed",
		Epoch:    st.Epoch,
		Position: string(position),
		Amount:   amount.String(),
	})

	return bet, nil
}

// ExecuteResult is the auditable outcome of an ExecuteRound call.
type ExecuteResult struct {
	Epoch      uint64           `json:"epoch"`
	Expired    bool             `json:"expired"`
	Outcome    model.Position   `json:"outcome,omitempty"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`
	Fee        decimal.Decimal  `json:"fee"`
	Reward     decimal.Decimal  `json:"reward"`
}

// ExecuteRound settles the round whose end time has passed (epoch-1), locks
// the current betting round by chaining the close price onto its open
// price, and opens the next round. Operator-only.
//
// If the settlement window was missed, the market pauses and the round
// becomes permanently refundable; that is a terminal outcome, not an error.
func (s *Service) ExecuteRound(ctx context.Context, sender string, now int64) (*ExecuteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, st, err := s.configAndState(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(cfg, sender, roleOperator); err != nil {
		return nil, err
	}
	if st.Paused {
		return nil, ErrPaused
	}

	progressingEpoch := st.Epoch - 1
	progressing, err := s.store.GetRound(ctx, progressingEpoch)
	if err != nil {
		return nil, err
	}

	if round.Expired(progressing, now, cfg.GraceInterval) {
		st.Paused = true
		if err := s.store.SetState(ctx, st); err != nil {
			return nil, err
		}

		metrics.RoundsExpired.Inc()
		slog.Warn("round expired unsettled, market paused",
			"epoch", progressingEpoch,
			"end_time", progressing.EndTime,
			"now", now,
		)
		s.broadcast(WSMessage{Type: "round_expired", Epoch: progressingEpoch})

		return &ExecuteResult{Epoch: progressingEpoch, Expired: true}, nil
	}

	if !round.Executable(progressing, now, cfg.GraceInterval) {
		return nil, fmt.Errorf("%w: epoch %d at %d", ErrCannotExecute, progressingEpoch, now)
	}

	data, err := s.oracle.ReferenceData(ctx, cfg.BaseSymbol, cfg.QuoteSymbol)
	if err != nil {
		return nil, err
	}
	closePrice := data.Rate

	reward, fee, outcome := round.Settle(progressing, closePrice, cfg.FeeRate)
	progressing.ClosePrice = &closePrice
	progressing.RewardAmount = reward
	if err := s.store.PutRound(ctx, progressing); err != nil {
		return nil, err
	}

	// The close price of round N becomes the open price of round N+1.
	betting, err := s.store.GetRound(ctx, st.Epoch)
	if err != nil {
		return nil, err
	}
	openPrice := closePrice
	betting.OpenPrice = &openPrice
	if err := s.store.PutRound(ctx, betting); err != nil {
		return nil, err
	}

	st.Epoch++
	st.TotalFee = st.TotalFee.Add(fee)
	next := newRound(st.Epoch, now, cfg.Interval)
	if err := s.store.PutRound(ctx, next); err != nil {
		return nil, err
	}
	if err := s.store.SetState(ctx, st); err != nil {
		return nil, err
	}

	metrics.RoundsExecuted.WithLabelValues(string(outcome)).Inc()
	metrics.AccumulatedFee.Set(st.TotalFee.InexactFloat64())

	slog.Info("round executed",
		"epoch", progressingEpoch,
		"outcome", outcome,
		"close_price", closePrice.String(),
		"price_updated_at", data.LastUpdated,
		"reward", reward.String(),
		"fee", fee.String(),
		"next_epoch", st.Epoch,
	)
	s.broadcast(WSMessage{
		Type:       "round_executed",
		Epoch:      progressingEpoch,
		Outcome:    string(outcome),
		ClosePrice: closePrice.String(),
	})

	return &ExecuteResult{
		Epoch:      progressingEpoch,
		Outcome:    outcome,
		ClosePrice: &closePrice,
		Fee:        fee,
		Reward:     reward,
	}, nil
}

// ClaimResult reports a paid claim.
type ClaimResult struct {
	Epoch    uint64                    `json:"epoch"`
	Amount   decimal.Decimal           `json:"amount"`
	Refund   bool                      `json:"refund"`
	Transfer asset.TransferInstruction `json:"transfer"`
}

// Claim pays out the caller's winnings or refund for a settled, drawn, or
// expired round. The claimed flag is persisted before the transfer is
// issued so a re-entrant call cannot double-claim.
func (s *Service) Claim(ctx context.Context, sender string, epoch uint64, now int64) (*ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.store.GetRound(ctx, epoch)
	if err != nil {
		return nil, err
	}
	bet, err := s.store.GetBet(ctx, epoch, sender)
	if err != nil {
		return nil, err
	}
	if bet.Claimed {
		return nil, ErrAlreadyClaimed
	}

	amount := round.ClaimAmount(r, bet, now, cfg.GraceInterval)
	if amount.IsZero() {
		return nil, ErrNothingToClaim
	}

	bet.Claimed = true
	if err := s.store.PutBet(ctx, bet); err != nil {
		return nil, err
	}

	instr, err := s.gateway.Pay(ctx, sender, amount)
	if err != nil {
		return nil, err
	}

	refund := round.Refundable(r, now, cfg.GraceInterval)
	kind := "reward"
	if refund {
		kind = "refund"
	}
	metrics.ClaimsTotal.WithLabelValues(kind).Inc()

	slog.Info("claim paid",
		"epoch", epoch,
		"user", sender,
		"amount", amount.String(),
		"kind", kind,
	)

	return &ClaimResult{Epoch: epoch, Amount: amount, Refund: refund, Transfer: instr}, nil
}

// WithdrawResult reports a fee withdrawal to the treasury.
type WithdrawResult struct {
	Amount   decimal.Decimal           `json:"amount"`
	Transfer asset.TransferInstruction `json:"transfer"`
}

// Withdraw moves the accumulated protocol fee to the treasury. Owner-only.
func (s *Service) Withdraw(ctx context.Context, sender string) (*WithdrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, st, err := s.configAndState(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(cfg, sender, roleOwner); err != nil {
		return nil, err
	}
	if st.TotalFee.IsZero() {
		return nil, ErrNothingToWithdraw
	}

	amount := st.TotalFee
	st.TotalFee = decimal.Zero
	if err := s.store.SetState(ctx, st); err != nil {
		return nil, err
	}

	instr, err := s.gateway.Pay(ctx, cfg.TreasuryAddr, amount)
	if err != nil {
		return nil, err
	}

	metrics.AccumulatedFee.Set(0)
	slog.Info("fee withdrawn", "amount", amount.String(), "treasury", cfg.TreasuryAddr)

	return &WithdrawResult{Amount: amount, Transfer: instr}, nil
}

// Pause halts round advancement. Owner-only.
func (s *Service) Pause(ctx context.Context, sender string) (*model.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, st, err := s.configAndState(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(cfg, sender, roleOwner); err != nil {
		return nil, err
	}
	if st.Paused {
		return nil, ErrAlreadyPaused
	}

	st.Paused = true
	if err := s.store.SetState(ctx, st); err != nil {
		return nil, err
	}

	slog.Info("market paused", "epoch", st.Epoch)
	return st, nil
}

// ConfigUpdate carries the optional fields of an UpdateConfig command.
// Nil fields are left unchanged.
type ConfigUpdate struct {
	OwnerAddr     *string          `json:"owner_addr,omitempty"`
	OperatorAddr  *string          `json:"operator_addr,omitempty"`
	TreasuryAddr  *string          `json:"treasury_addr,omitempty"`
	OracleURL     *string          `json:"oracle_url,omitempty"`
	BaseSymbol    *string          `json:"base_symbol,omitempty"`
	QuoteSymbol   *string          `json:"quote_symbol,omitempty"`
	FeeRate       *decimal.Decimal `json:"fee_rate,omitempty"`
	Interval      *int64           `json:"interval,omitempty"`
	GraceInterval *int64           `json:"grace_interval,omitempty"`
}

// UpdateConfig applies a partial config update after validating the result
// against the config invariants. Owner-only.
func (s *Service) UpdateConfig(ctx context.Context, sender string, upd ConfigUpdate) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(cfg, sender, roleOwner); err != nil {
		return nil, err
	}

	if upd.OwnerAddr != nil {
		cfg.OwnerAddr = *upd.OwnerAddr
	}
	if upd.OperatorAddr != nil {
		cfg.OperatorAddr = *upd.OperatorAddr
	}
	if upd.TreasuryAddr != nil {
		cfg.TreasuryAddr = *upd.TreasuryAddr
	}
	if upd.OracleURL != nil {
		cfg.OracleURL = *upd.OracleURL
	}
	if upd.BaseSymbol != nil {
		cfg.BaseSymbol = *upd.BaseSymbol
	}
	if upd.QuoteSymbol != nil {
		cfg.QuoteSymbol = *upd.QuoteSymbol
	}
	if upd.FeeRate != nil {
		cfg.FeeRate = *upd.FeeRate
	}
	if upd.Interval != nil {
		cfg.Interval = *upd.Interval
	}
	if upd.GraceInterval != nil {
		cfg.GraceInterval = *upd.GraceInterval
	}

	// Validate the post-update record before committing anything.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SetConfig(ctx, cfg); err != nil {
		return nil, err
	}

	slog.Info("config updated", "by", sender)
	return cfg, nil
}

// --- Read-only queries ---

func (s *Service) Config(ctx context.Context) (*model.Config, error) {
	return s.store.GetConfig(ctx)
}

func (s *Service) State(ctx context.Context) (*model.State, error) {
	return s.store.GetState(ctx)
}

func (s *Service) Round(ctx context.Context, epoch uint64) (*model.Round, error) {
	return s.store.GetRound(ctx, epoch)
}

func (s *Service) BetOf(ctx context.Context, epoch uint64, user string) (*model.Bet, error) {
	return s.store.GetBet(ctx, epoch, user)
}

// --- Helpers ---

func (s *Service) configAndState(ctx context.Context) (*model.Config, *model.State, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.store.GetState(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

// newRound opens a fresh betting round at epoch: betting over
// [now, now+interval], settling at now+2*interval.
func newRound(epoch uint64, now, interval int64) *model.Round {
	return &model.Round{
		Epoch:        epoch,
		StartTime:    now,
		LockTime:     now + interval,
		EndTime:      now + 2*interval,
		TotalAmount:  decimal.Zero,
		RewardAmount: decimal.Zero,
		UpAmount:     decimal.Zero,
		DownAmount:   decimal.Zero,
	}
}

func (s *Service) broadcast(msg WSMessage) {
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
}
