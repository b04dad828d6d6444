package round_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/model"
	"github.com/predix/prediction-engine/internal/round"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func p(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

// settledRound builds a round with the given pools, ended at t=1000 with a
// 100-second grace interval in the callers below.
func settledRound(total, up, down float64) *model.Round {
	return &model.Round{
		Epoch:        5,
		StartTime:    800,
		LockTime:     900,
		EndTime:      1000,
		TotalAmount:  d(total),
		RewardAmount: decimal.Zero,
		UpAmount:     d(up),
		DownAmount:   d(down),
	}
}

const grace = 100

// --- Settlement pool math ---

func TestSettle_FeeApplies(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)

	reward, fee, outcome := round.Settle(r, d(51000), d(0.05))

	if outcome != model.PositionUp {
		t.Errorf("expected up outcome, got %s", outcome)
	}
	// reward 95 >= winning pool 80, so the fee stands.
	if !reward.Equal(d(95)) {
		t.Errorf("expected reward=95, got %s", reward)
	}
	if !fee.Equal(d(5)) {
		t.Errorf("expected fee=5, got %s", fee)
	}
}

func TestSettle_PrincipalProtectionWaivesFee(t *testing.T) {
	r := settledRound(100, 98, 2)
	r.OpenPrice = p(50000)

	reward, fee, outcome := round.Settle(r, d(51000), d(0.05))

	if outcome != model.PositionUp {
		t.Errorf("expected up outcome, got %s", outcome)
	}
	// Naive reward 95 < winning pool 98 → fee waived entirely.
	if !reward.Equal(d(100)) {
		t.Errorf("expected reward=100, got %s", reward)
	}
	if !fee.IsZero() {
		t.Errorf("expected fee=0, got %s", fee)
	}
}

func TestSettle_DownOutcome(t *testing.T) {
	r := settledRound(100, 20, 80)
	r.OpenPrice = p(50000)

	reward, fee, outcome := round.Settle(r, d(49000), d(0.05))

	if outcome != model.PositionDown {
		t.Errorf("expected down outcome, got %s", outcome)
	}
	if !reward.Equal(d(95)) || !fee.Equal(d(5)) {
		t.Errorf("expected reward=95 fee=5, got %s/%s", reward, fee)
	}
}

func TestSettle_Draw(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)

	reward, fee, outcome := round.Settle(r, d(50000), d(0.05))

	if outcome != model.PositionDraw {
		t.Errorf("expected draw, got %s", outcome)
	}
	if !reward.IsZero() || !fee.IsZero() {
		t.Errorf("draw should take no fee and fix no reward, got %s/%s", reward, fee)
	}
}

func TestSettle_InvariantRewardBounds(t *testing.T) {
	// For any non-draw settlement: winningPool <= reward <= total.
	cases := []struct{ total, up, down, feeRate float64 }{
		{100, 80, 20, 0.05},
		{100, 98, 2, 0.05},
		{100, 1, 99, 0.50},
		{1000, 999, 1, 0.01},
		{3, 2, 1, 0.99},
	}
	for _, tc := range cases {
		r := settledRound(tc.total, tc.up, tc.down)
		r.OpenPrice = p(100)
		reward, fee, outcome := round.Settle(r, d(200), d(tc.feeRate))

		if reward.GreaterThan(r.TotalAmount) {
			t.Errorf("%+v: reward %s exceeds total", tc, reward)
		}
		pool := round.WinningPool(r, outcome)
		if pool.IsPositive() && reward.LessThan(pool) {
			t.Errorf("%+v: reward %s below winning pool %s", tc, reward, pool)
		}
		if !reward.Add(fee).Equal(r.TotalAmount) && !fee.IsZero() {
			t.Errorf("%+v: reward %s + fee %s != total %s", tc, reward, fee, r.TotalAmount)
		}
	}
}

// --- Claim amounts ---

func TestClaimAmount_WinnerProportionalShare(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)
	r.ClosePrice = p(51000)
	r.RewardAmount = d(95)

	bet := &model.Bet{Epoch: 5, UserAddr: "alice", Amount: d(8), Position: model.PositionUp}

	// 95 * 8/80 = 9.5, truncated to 9.
	got := round.ClaimAmount(r, bet, 1000, grace)
	if !got.Equal(d(9)) {
		t.Errorf("expected claim=9, got %s", got)
	}
}

func TestClaimAmount_LoserGetsZero(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)
	r.ClosePrice = p(51000)
	r.RewardAmount = d(95)

	bet := &model.Bet{Amount: d(20), Position: model.PositionDown}

	if got := round.ClaimAmount(r, bet, 1000, grace); !got.IsZero() {
		t.Errorf("loser should claim 0, got %s", got)
	}
}

func TestClaimAmount_SumNeverExceedsReward(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)
	r.ClosePrice = p(51000)
	r.RewardAmount = d(95)

	stakes := []float64{33, 33, 14} // winning pool = 80
	sum := decimal.Zero
	for _, s := range stakes {
		bet := &model.Bet{Amount: d(s), Position: model.PositionUp}
		sum = sum.Add(round.ClaimAmount(r, bet, 1000, grace))
	}

	if sum.GreaterThan(r.RewardAmount) {
		t.Errorf("claims sum %s exceeds reward %s", sum, r.RewardAmount)
	}
}

func TestClaimAmount_DrawRefundsExactStake(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)
	r.ClosePrice = p(50000)

	bet := &model.Bet{Amount: d(17), Position: model.PositionDown}

	if got := round.ClaimAmount(r, bet, 1000, grace); !got.Equal(d(17)) {
		t.Errorf("draw refund should equal stake, got %s", got)
	}
}

func TestClaimAmount_ExpiredRefundsExactStake(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000) // close never recorded

	bet := &model.Bet{Amount: d(42), Position: model.PositionUp}

	if got := round.ClaimAmount(r, bet, 1000+grace+1, grace); !got.Equal(d(42)) {
		t.Errorf("expired refund should equal stake, got %s", got)
	}
}

func TestClaimAmount_NotYetAvailable(t *testing.T) {
	r := settledRound(100, 80, 20)
	r.OpenPrice = p(50000)

	bet := &model.Bet{Amount: d(10), Position: model.PositionUp}

	// Round ended but still inside the settlement grace window.
	if got := round.ClaimAmount(r, bet, 1000+grace, grace); !got.IsZero() {
		t.Errorf("claim inside grace window should be 0, got %s", got)
	}
	// Round not even ended.
	if got := round.ClaimAmount(r, bet, 999, grace); !got.IsZero() {
		t.Errorf("claim before end should be 0, got %s", got)
	}
}

// --- Predicates ---

func TestBettable_Window(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300}

	cases := []struct {
		now  int64
		want bool
	}{
		{99, false},  // before start
		{100, true},  // at start
		{150, true},  // inside window
		{200, true},  // at lock
		{201, false}, // after lock
	}
	for _, tc := range cases {
		if got := round.Bettable(r, tc.now); got != tc.want {
			t.Errorf("Bettable(now=%d) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestBettable_GenesisNever(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300, IsGenesis: true}
	if round.Bettable(r, 150) {
		t.Error("genesis round must not be bettable")
	}
}

func TestBettable_PricedRoundNever(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300, OpenPrice: p(50000)}
	if round.Bettable(r, 150) {
		t.Error("round with open price must not be bettable")
	}
}

func TestExecutable_Window(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300, OpenPrice: p(50000)}

	cases := []struct {
		now  int64
		want bool
	}{
		{299, false},         // before end
		{300, true},          // at end
		{300 + grace, true},  // at end of grace
		{301 + grace, false}, // window missed
	}
	for _, tc := range cases {
		if got := round.Executable(r, tc.now, grace); got != tc.want {
			t.Errorf("Executable(now=%d) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestExecutable_RequiresChainedOpenPrice(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300}
	if round.Executable(r, 300, grace) {
		t.Error("round without open price must not be executable")
	}
}

func TestExpired(t *testing.T) {
	r := &model.Round{StartTime: 100, LockTime: 200, EndTime: 300, OpenPrice: p(50000)}

	if round.Expired(r, 300+grace, grace) {
		t.Error("round inside grace window is not expired")
	}
	if !round.Expired(r, 301+grace, grace) {
		t.Error("round past grace window with no close price is expired")
	}

	r.ClosePrice = p(51000)
	if round.Expired(r, 301+grace, grace) {
		t.Error("settled round can never expire")
	}
}
