// Package asset handles the polymorphic bet asset: either a native
// denomination or a token contract. It validates inbound stakes and builds
// outbound transfer instructions, keeping the engine asset-agnostic.
package asset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset kinds.
const (
	KindNative = "native"
	KindToken  = "token"
)

var (
	ErrInvalidDescriptor = fmt.Errorf("asset: invalid descriptor (expected native:{denom} or token:{contract}:{hash})")
	ErrInvalidAsset      = fmt.Errorf("asset: deposit is not the configured bet asset")
	ErrFundsMismatch     = fmt.Errorf("asset: native token balance mismatch between the argument and the transferred")
)

// Info identifies the configured bet asset.
type Info struct {
	Kind string `json:"kind"`

	// Native asset.
	Denom string `json:"denom,omitempty"`

	// Token asset.
	ContractAddr string `json:"contract_addr,omitempty"`
	TokenHash    string `json:"token_hash,omitempty"`
}

// IsNative reports whether the asset is a native denomination.
func (i Info) IsNative() bool {
	return i.Kind == KindNative
}

// String renders the descriptor form of the asset.
func (i Info) String() string {
	if i.IsNative() {
		return KindNative + ":" + i.Denom
	}
	return KindToken + ":" + i.ContractAddr + ":" + i.TokenHash
}

// Parse reads an asset descriptor of the form "native:{denom}" or
// "token:{contract}:{hash}".
func Parse(descriptor string) (Info, error) {
	parts := strings.Split(descriptor, ":")
	switch {
	case len(parts) == 2 && parts[0] == KindNative && parts[1] != "":
		return Info{Kind: KindNative, Denom: parts[1]}, nil
	case len(parts) == 3 && parts[0] == KindToken && parts[1] != "":
		return Info{Kind: KindToken, ContractAddr: parts[1], TokenHash: parts[2]}, nil
	default:
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidDescriptor, descriptor)
	}
}

// Coin is one denomination of caller-supplied funds.
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// Inbound describes a caller's deposit alongside a bet: the declared stake,
// the native funds actually attached, and (for token bets) the contract that
// invoked the receive hook.
type Inbound struct {
	Amount        decimal.Decimal `json:"amount"`
	Funds         []Coin          `json:"funds,omitempty"`
	TokenContract string          `json:"token_contract,omitempty"`
}

// ValidateInbound checks that the deposit matches the configured asset and
// returns the stake amount the engine may credit.
//
// Native: the attached funds must contain the configured denom with exactly
// the declared amount. Token: the receive hook must come from the configured
// token contract; the transferred amount is trusted as already settled.
func (i Info) ValidateInbound(in Inbound) (decimal.Decimal, error) {
	if i.IsNative() {
		for _, c := range in.Funds {
			if c.Denom == i.Denom {
				if !c.Amount.Equal(in.Amount) {
					return decimal.Zero, ErrFundsMismatch
				}
				return in.Amount, nil
			}
		}
		if in.Amount.IsZero() {
			return decimal.Zero, nil
		}
		return decimal.Zero, ErrFundsMismatch
	}

	if in.TokenContract != i.ContractAddr {
		return decimal.Zero, fmt.Errorf("%w: got contract %q", ErrInvalidAsset, in.TokenContract)
	}
	return in.Amount, nil
}

// Instruction types.
const (
	TransferBankSend  = "bank_send"
	TransferTokenSend = "token_send"
)

// TransferInstruction is an outbound value transfer, either a native bank
// send or a token contract send, ready for the host transfer mechanism.
type TransferInstruction struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Recipient    string          `json:"recipient"`
	Amount       decimal.Decimal `json:"amount"`
	Denom        string          `json:"denom,omitempty"`
	ContractAddr string          `json:"contract_addr,omitempty"`
	TokenHash    string          `json:"token_hash,omitempty"`
}

// BuildPayout constructs the transfer instruction paying amount to recipient
// in the configured asset.
func (i Info) BuildPayout(recipient string, amount decimal.Decimal) TransferInstruction {
	instr := TransferInstruction{
		ID:        uuid.New().String(),
		Recipient: recipient,
		Amount:    amount,
	}
	if i.IsNative() {
		instr.Type = TransferBankSend
		instr.Denom = i.Denom
	} else {
		instr.Type = TransferTokenSend
		instr.ContractAddr = i.ContractAddr
		instr.TokenHash = i.TokenHash
	}
	return instr
}

// Gateway moves value out to a recipient. Implementations must be atomic:
// an error means nothing was transferred.
type Gateway interface {
	Pay(ctx context.Context, recipient string, amount decimal.Decimal) (TransferInstruction, error)
}

// Recorder is a Gateway that builds instructions for the configured asset
// and records them in order. It backs development, tests, and any host that
// drains the recorded instructions as an outbox.
type Recorder struct {
	info Info

	mu           sync.Mutex
	instructions []TransferInstruction
}

// NewRecorder creates a recording gateway for the given asset.
func NewRecorder(info Info) *Recorder {
	return &Recorder{info: info}
}

func (r *Recorder) Pay(_ context.Context, recipient string, amount decimal.Decimal) (TransferInstruction, error) {
	instr := r.info.BuildPayout(recipient, amount)
	r.mu.Lock()
	r.instructions = append(r.instructions, instr)
	r.mu.Unlock()
	return instr, nil
}

// Instructions returns a copy of all recorded transfer instructions.
func (r *Recorder) Instructions() []TransferInstruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransferInstruction, len(r.instructions))
	copy(out, r.instructions)
	return out
}
