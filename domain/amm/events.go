package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	TypeLiquidityAdded       = "LiquidityAdded"
	TypeLiquidityRemoved     = "LiquidityRemoved"
	TypeSwap                 = "Swap"
	TypeOwnershipTransferred = "OwnershipTransferred"
)

// Event is a state change observable outside the exchange.
type Event interface {
	EventType() string
}

// Emitter receives events after an operation has committed.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// Recorder buffers events until drained. Not safe for concurrent use.
type Recorder struct {
	events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.events = append(r.events, ev)
}

// Drain returns the buffered events and resets the recorder.
func (r *Recorder) Drain() []Event {
	out := r.events
	r.events = nil
	return out
}

type LiquidityAdded struct {
	Provider common.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

type LiquidityRemoved struct {
	Provider common.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

type Swap struct {
	Caller    common.Address
	TokenIn   common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

func (Swap) EventType() string { return TypeSwap }

type OwnershipTransferred struct {
	Previous common.Address
	Next     common.Address
}

func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }
