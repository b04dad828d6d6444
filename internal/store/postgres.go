package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetConfig(ctx context.Context) (*model.Config, error) {
	var c model.Config
	var feeRate string

	err := s.pool.QueryRow(ctx,
		`SELECT owner_addr, operator_addr, treasury_addr,
		        bet_asset_kind, bet_asset_denom, bet_asset_contract, bet_asset_hash,
		        oracle_url, base_symbol, quote_symbol,
		        fee_rate::TEXT, round_interval, grace_interval
		 FROM market_config WHERE id = 1`).
		Scan(&c.OwnerAddr, &c.OperatorAddr, &c.TreasuryAddr,
			&c.BetAsset.Kind, &c.BetAsset.Denom, &c.BetAsset.ContractAddr, &c.BetAsset.TokenHash,
			&c.OracleURL, &c.BaseSymbol, &c.QuoteSymbol,
			&feeRate, &c.Interval, &c.GraceInterval)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	c.FeeRate, _ = decimal.NewFromString(feeRate)
	return &c, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, c *model.Config) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_config
		   (id, owner_addr, operator_addr, treasury_addr,
		    bet_asset_kind, bet_asset_denom, bet_asset_contract, bet_asset_hash,
		    oracle_url, base_symbol, quote_symbol,
		    fee_rate, round_interval, grace_interval)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::NUMERIC, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   owner_addr = EXCLUDED.owner_addr,
		   operator_addr = EXCLUDED.operator_addr,
		   treasury_addr = EXCLUDED.treasury_addr,
		   bet_asset_kind = EXCLUDED.bet_asset_kind,
		   bet_asset_denom = EXCLUDED.bet_asset_denom,
		   bet_asset_contract = EXCLUDED.bet_asset_contract,
		   bet_asset_hash = EXCLUDED.bet_asset_hash,
		   oracle_url = EXCLUDED.oracle_url,
		   base_symbol = EXCLUDED.base_symbol,
		   quote_symbol = EXCLUDED.quote_symbol,
		   fee_rate = EXCLUDED.fee_rate,
		   round_interval = EXCLUDED.round_interval,
		   grace_interval = EXCLUDED.grace_interval`,
		c.OwnerAddr, c.OperatorAddr, c.TreasuryAddr,
		c.BetAsset.Kind, c.BetAsset.Denom, c.BetAsset.ContractAddr, c.BetAsset.TokenHash,
		c.OracleURL, c.BaseSymbol, c.QuoteSymbol,
		c.FeeRate.String(), c.Interval, c.GraceInterval,
	)
	return err
}

func (s *PostgresStore) GetState(ctx context.Context) (*model.State, error) {
	var st model.State
	var epoch int64
	var totalFee string

	err := s.pool.QueryRow(ctx,
		`SELECT epoch, total_fee::TEXT, paused FROM engine_state WHERE id = 1`).
		Scan(&epoch, &totalFee, &st.Paused)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("state: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	st.Epoch = uint64(epoch)
	st.TotalFee, _ = decimal.NewFromString(totalFee)
	return &st, nil
}

func (s *PostgresStore) SetState(ctx context.Context, st *model.State) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engine_state (id, epoch, total_fee, paused)
		 VALUES (1, $1, $2::NUMERIC, $3)
		 ON CONFLICT (id) DO UPDATE SET
		   epoch = EXCLUDED.epoch,
		   total_fee = EXCLUDED.total_fee,
		   paused = EXCLUDED.paused`,
		int64(st.Epoch), st.TotalFee.String(), st.Paused,
	)
	return err
}

func (s *PostgresStore) GetRound(ctx context.Context, epoch uint64) (*model.Round, error) {
	var r model.Round
	var ep int64
	var openPrice, closePrice *string
	var total, reward, up, down string

	err := s.pool.QueryRow(ctx,
		`SELECT epoch, start_time, lock_time, end_time,
		        open_price::TEXT, close_price::TEXT,
		        total_amount::TEXT, reward_amount::TEXT,
		        up_amount::TEXT, down_amount::TEXT, is_genesis
		 FROM rounds WHERE epoch = $1`, int64(epoch)).
		Scan(&ep, &r.StartTime, &r.LockTime, &r.EndTime,
			&openPrice, &closePrice,
			&total, &reward, &up, &down, &r.IsGenesis)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("round %d: %w", epoch, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get round %d: %w", epoch, err)
	}

	r.Epoch = uint64(ep)
	r.OpenPrice = parseOptionalDecimal(openPrice)
	r.ClosePrice = parseOptionalDecimal(closePrice)
	r.TotalAmount, _ = decimal.NewFromString(total)
	r.RewardAmount, _ = decimal.NewFromString(reward)
	r.UpAmount, _ = decimal.NewFromString(up)
	r.DownAmount, _ = decimal.NewFromString(down)

	return &r, nil
}

func (s *PostgresStore) PutRound(ctx context.Context, r *model.Round) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rounds
		   (epoch, start_time, lock_time, end_time, open_price, close_price,
		    total_amount, reward_amount, up_amount, down_amount, is_genesis)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC,
		         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)
		 ON CONFLICT (epoch) DO UPDATE SET
		   start_time = EXCLUDED.start_time,
		   lock_time = EXCLUDED.lock_time,
		   end_time = EXCLUDED.end_time,
		   open_price = EXCLUDED.open_price,
		   close_price = EXCLUDED.close_price,
		   total_amount = EXCLUDED.total_amount,
		   reward_amount = EXCLUDED.reward_amount,
		   up_amount = EXCLUDED.up_amount,
		   down_amount = EXCLUDED.down_amount,
		   is_genesis = EXCLUDED.is_genesis`,
		int64(r.Epoch), r.StartTime, r.LockTime, r.EndTime,
		formatOptionalDecimal(r.OpenPrice), formatOptionalDecimal(r.ClosePrice),
		r.TotalAmount.String(), r.RewardAmount.String(),
		r.UpAmount.String(), r.DownAmount.String(), r.IsGenesis,
	)
	return err
}

func (s *PostgresStore) GetBet(ctx context.Context, epoch uint64, user string) (*model.Bet, error) {
	var b model.Bet
	var ep int64
	var amount, position string

	err := s.pool.QueryRow(ctx,
		`SELECT epoch, user_addr, amount::TEXT, position, claimed
		 FROM bets WHERE epoch = $1 AND user_addr = $2`, int64(epoch), user).
		Scan(&ep, &b.UserAddr, &amount, &position, &b.Claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bet %d/%s: %w", epoch, user, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bet %d/%s: %w", epoch, user, err)
	}

	b.Epoch = uint64(ep)
	b.Amount, _ = decimal.NewFromString(amount)
	b.Position = model.Position(position)
	return &b, nil
}

func (s *PostgresStore) PutBet(ctx context.Context, b *model.Bet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bets (epoch, user_addr, amount, position, claimed)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)
		 ON CONFLICT (epoch, user_addr) DO UPDATE SET
		   amount = EXCLUDED.amount,
		   position = EXCLUDED.position,
		   claimed = EXCLUDED.claimed`,
		int64(b.Epoch), b.UserAddr, b.Amount.String(), string(b.Position), b.Claimed,
	)
	return err
}

func parseOptionalDecimal(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}

func formatOptionalDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// Schema is the DDL for the four tables, applied by the operator or a
// migration step outside this service.
const Schema = `
CREATE TABLE IF NOT EXISTS market_config (
    id                 INT PRIMARY KEY CHECK (id = 1),
    owner_addr         TEXT NOT NULL,
    operator_addr      TEXT NOT NULL,
    treasury_addr      TEXT NOT NULL,
    bet_asset_kind     TEXT NOT NULL,
    bet_asset_denom    TEXT NOT NULL DEFAULT '',
    bet_asset_contract TEXT NOT NULL DEFAULT '',
    bet_asset_hash     TEXT NOT NULL DEFAULT '',
    oracle_url         TEXT NOT NULL,
    base_symbol        TEXT NOT NULL,
    quote_symbol       TEXT NOT NULL,
    fee_rate           NUMERIC NOT NULL,
    round_interval     BIGINT NOT NULL,
    grace_interval     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS engine_state (
    id        INT PRIMARY KEY CHECK (id = 1),
    epoch     BIGINT NOT NULL,
    total_fee NUMERIC NOT NULL,
    paused    BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS rounds (
    epoch         BIGINT PRIMARY KEY,
    start_time    BIGINT NOT NULL,
    lock_time     BIGINT NOT NULL,
    end_time      BIGINT NOT NULL,
    open_price    NUMERIC,
    close_price   NUMERIC,
    total_amount  NUMERIC NOT NULL,
    reward_amount NUMERIC NOT NULL,
    up_amount     NUMERIC NOT NULL,
    down_amount   NUMERIC NOT NULL,
    is_genesis    BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS bets (
    epoch     BIGINT NOT NULL,
    user_addr TEXT NOT NULL,
    amount    NUMERIC NOT NULL,
    position  TEXT NOT NULL,
    claimed   BOOLEAN NOT NULL,
    PRIMARY KEY (epoch, user_addr)
);
`
