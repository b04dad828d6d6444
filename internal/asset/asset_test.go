package asset_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/asset"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestParse(t *testing.T) {
	tests := []struct {
		descriptor string
		want       asset.Info
		wantErr    bool
	}{
		{"native:uscrt", asset.Info{Kind: asset.KindNative, Denom: "uscrt"}, false},
		{"token:secret1abc:deadbeef", asset.Info{Kind: asset.KindToken, ContractAddr: "secret1abc", TokenHash: "deadbeef"}, false},
		{"native:", asset.Info{}, true},
		{"token:secret1abc", asset.Info{}, true},
		{"stock:AAPL", asset.Info{}, true},
		{"", asset.Info{}, true},
	}
	for _, tt := range tests {
		got, err := asset.Parse(tt.descriptor)
		if tt.wantErr {
			if !errors.Is(err, asset.ErrInvalidDescriptor) {
				t.Errorf("Parse(%q): expected descriptor error, got %v", tt.descriptor, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): unexpected error %v", tt.descriptor, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.descriptor, got, tt.want)
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, descriptor := range []string{"native:uscrt", "token:secret1abc:deadbeef"} {
		info, err := asset.Parse(descriptor)
		if err != nil {
			t.Fatalf("Parse(%q): %v", descriptor, err)
		}
		if info.String() != descriptor {
			t.Errorf("String() = %q, want %q", info.String(), descriptor)
		}
	}
}

func TestValidateInbound_Native(t *testing.T) {
	info := asset.Info{Kind: asset.KindNative, Denom: "uscrt"}

	amount, err := info.ValidateInbound(asset.Inbound{
		Amount: d(100),
		Funds:  []asset.Coin{{Denom: "uscrt", Amount: d(100)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(100)) {
		t.Errorf("expected amount=100, got %s", amount)
	}

	// Declared amount and attached funds disagree.
	_, err = info.ValidateInbound(asset.Inbound{
		Amount: d(100),
		Funds:  []asset.Coin{{Denom: "uscrt", Amount: d(50)}},
	})
	if !errors.Is(err, asset.ErrFundsMismatch) {
		t.Errorf("expected funds mismatch, got %v", err)
	}

	// Wrong denomination attached.
	_, err = info.ValidateInbound(asset.Inbound{
		Amount: d(100),
		Funds:  []asset.Coin{{Denom: "uatom", Amount: d(100)}},
	})
	if !errors.Is(err, asset.ErrFundsMismatch) {
		t.Errorf("expected funds mismatch for wrong denom, got %v", err)
	}

	// No funds at all but a declared stake.
	_, err = info.ValidateInbound(asset.Inbound{Amount: d(100)})
	if !errors.Is(err, asset.ErrFundsMismatch) {
		t.Errorf("expected funds mismatch for missing funds, got %v", err)
	}
}

func TestValidateInbound_NativeIgnoresExtraDenoms(t *testing.T) {
	info := asset.Info{Kind: asset.KindNative, Denom: "uscrt"}

	amount, err := info.ValidateInbound(asset.Inbound{
		Amount: d(100),
		Funds: []asset.Coin{
			{Denom: "uatom", Amount: d(7)},
			{Denom: "uscrt", Amount: d(100)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(100)) {
		t.Errorf("expected amount=100, got %s", amount)
	}
}

func TestValidateInbound_Token(t *testing.T) {
	info := asset.Info{Kind: asset.KindToken, ContractAddr: "secret1abc", TokenHash: "deadbeef"}

	amount, err := info.ValidateInbound(asset.Inbound{
		Amount:        d(100),
		TokenContract: "secret1abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(d(100)) {
		t.Errorf("expected amount=100, got %s", amount)
	}

	_, err = info.ValidateInbound(asset.Inbound{
		Amount:        d(100),
		TokenContract: "secret1evil",
	})
	if !errors.Is(err, asset.ErrInvalidAsset) {
		t.Errorf("expected invalid asset for wrong contract, got %v", err)
	}
}

func TestBuildPayout(t *testing.T) {
	native := asset.Info{Kind: asset.KindNative, Denom: "uscrt"}
	instr := native.BuildPayout("alice", d(95))
	if instr.Type != asset.TransferBankSend {
		t.Errorf("expected bank send, got %s", instr.Type)
	}
	if instr.Denom != "uscrt" || instr.Recipient != "alice" || !instr.Amount.Equal(d(95)) {
		t.Errorf("unexpected instruction: %+v", instr)
	}
	if instr.ID == "" {
		t.Error("instruction should carry an id")
	}

	token := asset.Info{Kind: asset.KindToken, ContractAddr: "secret1abc", TokenHash: "deadbeef"}
	instr = token.BuildPayout("bob", d(20))
	if instr.Type != asset.TransferTokenSend {
		t.Errorf("expected token send, got %s", instr.Type)
	}
	if instr.ContractAddr != "secret1abc" || instr.TokenHash != "deadbeef" {
		t.Errorf("unexpected instruction: %+v", instr)
	}
}

func TestRecorder_CapturesTransfers(t *testing.T) {
	gw := asset.NewRecorder(asset.Info{Kind: asset.KindNative, Denom: "uscrt"})

	if _, err := gw.Pay(context.Background(), "alice", d(95)); err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	if _, err := gw.Pay(context.Background(), "bob", d(20)); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	instrs := gw.Instructions()
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(instrs))
	}
	if instrs[0].Recipient != "alice" || instrs[1].Recipient != "bob" {
		t.Errorf("unexpected recipients: %s, %s", instrs[0].Recipient, instrs[1].Recipient)
	}
}
