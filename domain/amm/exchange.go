package amm

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the slice of a fungible asset ledger the exchange depends on.
// Spender and sender identities are explicit because there is no implicit
// message sender in Go.
type Ledger interface {
	Asset() common.Address
	BalanceOf(holder common.Address) *uint256.Int
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	// Transfer must succeed whenever BalanceOf(from) >= amount and to is not
	// the zero address. The exchange checks custody balances up front and
	// relies on this to pay out both legs of a removal or a swap; a ledger
	// that breaks it can leave a removal half applied (reserves still match
	// custody, see RemoveLiquidity).
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// Exchange holds the reserve pair of a two-asset pool.
//
// Reserve counters are committed before any external transfer and restored
// if the transfer fails, so a ledger that calls back into the exchange never
// sees stale reserves. Such a call is rejected with ErrReentrantCall anyway.
type Exchange struct {
	address common.Address
	ledgerA Ledger
	ledgerB Ledger

	reserveA uint256.Int
	reserveB uint256.Int
	owner    common.Address

	emitter Emitter
	entered bool
}

// New binds an empty exchange to two ledgers. The deployer becomes owner;
// address is the exchange's own custody identity on both ledgers.
func New(address, deployer common.Address, ledgerA, ledgerB Ledger, emitter Emitter) (*Exchange, error) {
	if ledgerA == nil || ledgerB == nil {
		return nil, errors.New("amm: nil ledger")
	}
	if ledgerA.Asset() == ledgerB.Asset() {
		return nil, errors.Wrapf(ErrIdenticalAssets, "%s", ledgerA.Asset())
	}
	if deployer == (common.Address{}) {
		return nil, errors.WithStack(ErrInvalidOwner)
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &Exchange{
		address: address,
		ledgerA: ledgerA,
		ledgerB: ledgerB,
		owner:   deployer,
		emitter: emitter,
	}, nil
}

// ---- queries ----

func (e *Exchange) Address() common.Address { return e.address }
func (e *Exchange) TokenA() common.Address  { return e.ledgerA.Asset() }
func (e *Exchange) TokenB() common.Address  { return e.ledgerB.Asset() }
func (e *Exchange) Owner() common.Address   { return e.owner }

func (e *Exchange) ReserveA() *uint256.Int { return e.reserveA.Clone() }
func (e *Exchange) ReserveB() *uint256.Int { return e.reserveB.Clone() }

// Price returns the spot price of asset in units of the other asset,
// scaled by PriceScale.
func (e *Exchange) Price(asset common.Address) (*uint256.Int, error) {
	switch asset {
	case e.TokenA():
		return SpotPrice(&e.reserveA, &e.reserveB)
	case e.TokenB():
		return SpotPrice(&e.reserveB, &e.reserveA)
	default:
		return nil, errors.Wrapf(ErrUnknownAsset, "%s", asset)
	}
}

// Quote returns what a swap of amountIn of assetIn would pay out right now.
func (e *Exchange) Quote(assetIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	switch assetIn {
	case e.TokenA():
		return AmountOut(amountIn, &e.reserveA, &e.reserveB)
	case e.TokenB():
		return AmountOut(amountIn, &e.reserveB, &e.reserveA)
	default:
		return nil, errors.Wrapf(ErrUnknownAsset, "%s", assetIn)
	}
}

// ---- owner operations ----

// AddLiquidity pulls amountA and amountB from the owner. No ratio check is
// made against the current reserves.
func (e *Exchange) AddLiquidity(caller common.Address, amountA, amountB *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.onlyOwner(caller); err != nil {
		return err
	}
	if isZero(amountA) || isZero(amountB) {
		return errors.Wrapf(ErrInvalidAmount, "add liquidity (%s, %s)", dec(amountA), dec(amountB))
	}
	nextA, overflowA := new(uint256.Int).AddOverflow(&e.reserveA, amountA)
	nextB, overflowB := new(uint256.Int).AddOverflow(&e.reserveB, amountB)
	if overflowA || overflowB {
		return errors.Wrapf(ErrInvalidAmount, "add liquidity (%s, %s) overflows reserves", amountA.Dec(), amountB.Dec())
	}

	prevA, prevB := e.reserveA, e.reserveB
	e.reserveA, e.reserveB = *nextA, *nextB

	if err := e.pull(e.ledgerA, caller, amountA); err != nil {
		e.reserveA, e.reserveB = prevA, prevB
		return err
	}
	if err := e.pull(e.ledgerB, caller, amountB); err != nil {
		e.reserveA, e.reserveB = prevA, prevB
		return e.refund(e.ledgerA, caller, amountA, err)
	}

	e.emitter.Emit(LiquidityAdded{
		Provider: caller,
		AmountA:  amountA.Clone(),
		AmountB:  amountB.Clone(),
	})
	return nil
}

// RemoveLiquidity sends amountA and amountB from custody back to the owner.
// Draining both sides to zero is allowed; draining only one is not. Removing
// (0, 0) changes nothing but still emits LiquidityRemoved.
//
// Both custody balances are checked before the first payout, so with a
// Ledger that honours the Transfer contract the second leg cannot fail.
func (e *Exchange) RemoveLiquidity(caller common.Address, amountA, amountB *uint256.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.onlyOwner(caller); err != nil {
		return err
	}
	amountA, amountB = orZero(amountA), orZero(amountB)
	if amountA.Gt(&e.reserveA) || amountB.Gt(&e.reserveB) {
		return errors.Wrapf(ErrInsufficientReserves,
			"remove (%s, %s) from (%s, %s)", amountA.Dec(), amountB.Dec(), e.reserveA.Dec(), e.reserveB.Dec())
	}
	nextA := new(uint256.Int).Sub(&e.reserveA, amountA)
	nextB := new(uint256.Int).Sub(&e.reserveB, amountB)
	if nextA.IsZero() != nextB.IsZero() {
		return errors.Wrapf(ErrInvalidAmount,
			"remove (%s, %s) would leave a one-sided pool", amountA.Dec(), amountB.Dec())
	}
	if err := e.checkCustody(e.ledgerA, amountA); err != nil {
		return err
	}
	if err := e.checkCustody(e.ledgerB, amountB); err != nil {
		return err
	}

	prevA, prevB := e.reserveA, e.reserveB
	e.reserveA, e.reserveB = *nextA, *nextB

	if err := e.push(e.ledgerA, caller, amountA); err != nil {
		e.reserveA, e.reserveB = prevA, prevB
		return err
	}
	if err := e.push(e.ledgerB, caller, amountB); err != nil {
		// A already left custody; keep reserveA equal to the ledger balance.
		e.reserveB = prevB
		return err
	}

	e.emitter.Emit(LiquidityRemoved{
		Provider: caller,
		AmountA:  amountA.Clone(),
		AmountB:  amountB.Clone(),
	})
	return nil
}

// TransferOwnership hands the owner role to next.
func (e *Exchange) TransferOwnership(caller, next common.Address) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.onlyOwner(caller); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return errors.Wrap(ErrInvalidOwner, "zero address")
	}
	prev := e.owner
	e.owner = next
	e.emitter.Emit(OwnershipTransferred{Previous: prev, Next: next})
	return nil
}

// ---- swaps ----

// SwapAForB sells amountIn of asset A for asset B.
func (e *Exchange) SwapAForB(caller common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	return e.swap(caller, amountIn, e.ledgerA, e.ledgerB, &e.reserveA, &e.reserveB)
}

// SwapBForA sells amountIn of asset B for asset A.
func (e *Exchange) SwapBForA(caller common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	return e.swap(caller, amountIn, e.ledgerB, e.ledgerA, &e.reserveB, &e.reserveA)
}

func (e *Exchange) swap(
	caller common.Address,
	amountIn *uint256.Int,
	in, out Ledger,
	reserveIn, reserveOut *uint256.Int,
) (*uint256.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	amountOut, err := AmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if err := e.checkCustody(out, amountOut); err != nil {
		return nil, err
	}

	prevIn, prevOut := *reserveIn, *reserveOut
	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, amountOut)

	if err := e.pull(in, caller, amountIn); err != nil {
		*reserveIn, *reserveOut = prevIn, prevOut
		return nil, err
	}
	if err := e.push(out, caller, amountOut); err != nil {
		*reserveIn, *reserveOut = prevIn, prevOut
		return nil, e.refund(in, caller, amountIn, err)
	}

	e.emitter.Emit(Swap{
		Caller:    caller,
		TokenIn:   in.Asset(),
		AmountIn:  amountIn.Clone(),
		AmountOut: amountOut.Clone(),
	})
	return amountOut, nil
}

// ---- guards & transfers ----

func (e *Exchange) enter() error {
	if e.entered {
		return errors.WithStack(ErrReentrantCall)
	}
	e.entered = true
	return nil
}

func (e *Exchange) exit() {
	e.entered = false
}

func (e *Exchange) onlyOwner(caller common.Address) error {
	if caller != e.owner {
		return errors.Wrapf(ErrUnauthorized, "caller %s is not the owner", caller)
	}
	return nil
}

func (e *Exchange) pull(l Ledger, from common.Address, amount *uint256.Int) error {
	if err := l.TransferFrom(e.address, from, e.address, amount); err != nil {
		return errors.Mark(errors.Wrapf(err, "pull %s of %s from %s", amount.Dec(), l.Asset(), from), ErrTransferFailed)
	}
	return nil
}

func (e *Exchange) push(l Ledger, to common.Address, amount *uint256.Int) error {
	if err := l.Transfer(e.address, to, amount); err != nil {
		return errors.Mark(errors.Wrapf(err, "push %s of %s to %s", amount.Dec(), l.Asset(), to), ErrTransferFailed)
	}
	return nil
}

// refund returns an input that was already pulled when a later step failed.
func (e *Exchange) refund(l Ledger, to common.Address, amount *uint256.Int, cause error) error {
	if err := l.Transfer(e.address, to, amount); err != nil {
		return errors.WithSecondaryError(cause, errors.Wrap(err, "refund"))
	}
	return cause
}

func (e *Exchange) checkCustody(l Ledger, amount *uint256.Int) error {
	if bal := l.BalanceOf(e.address); bal.Lt(amount) {
		return errors.Mark(errors.Newf("custody holds %s of %s, need %s", bal.Dec(), l.Asset(), amount.Dec()), ErrTransferFailed)
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
