package amm_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"simpledex/domain/amm"
	"simpledex/domain/ledger"
)

var (
	owner    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	user     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	exAddr   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	tokenA   = common.HexToAddress("0xaaaa00000000000000000000000000000000aaaa")
	tokenB   = common.HexToAddress("0xbbbb00000000000000000000000000000000bbbb")
	stranger = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type env struct {
	a, b *ledger.Token
	ex   *amm.Exchange
	rec  *amm.Recorder
}

// newEnv deploys two tokens and an empty exchange; owner and user each
// hold 10_000 of both assets.
func newEnv(t *testing.T) *env {
	t.Helper()
	a := ledger.NewToken(tokenA, "TKA", owner)
	b := ledger.NewToken(tokenB, "TKB", owner)
	for _, who := range []common.Address{owner, user} {
		require.NoError(t, a.Mint(owner, who, u(10_000)))
		require.NoError(t, b.Mint(owner, who, u(10_000)))
	}
	rec := &amm.Recorder{}
	ex, err := amm.New(exAddr, owner, a, b, rec)
	require.NoError(t, err)
	return &env{a: a, b: b, ex: ex, rec: rec}
}

// seeded returns an env whose pool holds reserveA=100, reserveB=200.
func seeded(t *testing.T) *env {
	t.Helper()
	e := newEnv(t)
	require.NoError(t, e.a.Approve(owner, exAddr, u(100)))
	require.NoError(t, e.b.Approve(owner, exAddr, u(200)))
	require.NoError(t, e.ex.AddLiquidity(owner, u(100), u(200)))
	e.rec.Drain()
	return e
}

func (e *env) requireReserves(t *testing.T, a, b uint64) {
	t.Helper()
	require.Equal(t, a, e.ex.ReserveA().Uint64(), "reserveA")
	require.Equal(t, b, e.ex.ReserveB().Uint64(), "reserveB")
	require.NoError(t, e.ex.CheckInvariants())
}

func TestNew(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, tokenA, e.ex.TokenA())
	require.Equal(t, tokenB, e.ex.TokenB())
	require.Equal(t, owner, e.ex.Owner())
	e.requireReserves(t, 0, 0)

	_, err := amm.New(exAddr, owner, e.a, e.a, nil)
	require.True(t, errors.Is(err, amm.ErrIdenticalAssets))

	_, err = amm.New(exAddr, common.Address{}, e.a, e.b, nil)
	require.True(t, errors.Is(err, amm.ErrInvalidOwner))
}

func TestAddLiquidity(t *testing.T) {
	e := seeded(t)
	e.requireReserves(t, 100, 200)
	require.Equal(t, uint64(9_900), e.a.BalanceOf(owner).Uint64())
	require.Equal(t, uint64(9_800), e.b.BalanceOf(owner).Uint64())

	// imbalanced additions are accepted as-is
	require.NoError(t, e.a.Approve(owner, exAddr, u(1)))
	require.NoError(t, e.b.Approve(owner, exAddr, u(500)))
	require.NoError(t, e.ex.AddLiquidity(owner, u(1), u(500)))
	e.requireReserves(t, 101, 700)

	events := e.rec.Drain()
	require.Len(t, events, 1)
	require.Equal(t, amm.LiquidityAdded{Provider: owner, AmountA: u(1), AmountB: u(500)}, events[0])
}

func TestAddLiquidityZeroAmount(t *testing.T) {
	e := newEnv(t)
	err := e.ex.AddLiquidity(owner, u(0), u(1))
	require.True(t, errors.Is(err, amm.ErrInvalidAmount))
	err = e.ex.AddLiquidity(owner, u(1), nil)
	require.True(t, errors.Is(err, amm.ErrInvalidAmount))
	e.requireReserves(t, 0, 0)
	require.Empty(t, e.rec.Drain())
}

func TestOwnerOnly(t *testing.T) {
	e := seeded(t)

	err := e.ex.AddLiquidity(user, u(1), u(1))
	require.True(t, errors.Is(err, amm.ErrUnauthorized))

	err = e.ex.RemoveLiquidity(user, u(1), u(1))
	require.True(t, errors.Is(err, amm.ErrUnauthorized))

	err = e.ex.TransferOwnership(user, user)
	require.True(t, errors.Is(err, amm.ErrUnauthorized))

	e.requireReserves(t, 100, 200)
	require.Empty(t, e.rec.Drain())
}

func TestAddLiquidityWithoutApproval(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.a.Approve(owner, exAddr, u(100)))
	// B is not approved: A must be handed back.
	err := e.ex.AddLiquidity(owner, u(100), u(200))
	require.True(t, errors.Is(err, amm.ErrTransferFailed))
	require.True(t, errors.Is(err, ledger.ErrInsufficientAllowance))

	e.requireReserves(t, 0, 0)
	require.Equal(t, uint64(10_000), e.a.BalanceOf(owner).Uint64())
	require.Empty(t, e.rec.Drain())
}

func TestRemoveLiquidity(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.ex.RemoveLiquidity(owner, u(50), u(100)))
	e.requireReserves(t, 50, 100)
	require.Equal(t, uint64(9_950), e.a.BalanceOf(owner).Uint64())

	events := e.rec.Drain()
	require.Equal(t, []amm.Event{amm.LiquidityRemoved{Provider: owner, AmountA: u(50), AmountB: u(100)}}, events)

	// full drain returns to the empty-pool state
	require.NoError(t, e.ex.RemoveLiquidity(owner, u(50), u(100)))
	e.requireReserves(t, 0, 0)
}

func TestRemoveLiquidityRejections(t *testing.T) {
	e := seeded(t)

	err := e.ex.RemoveLiquidity(owner, u(101), u(1))
	require.True(t, errors.Is(err, amm.ErrInsufficientReserves))

	err = e.ex.RemoveLiquidity(owner, u(1), u(201))
	require.True(t, errors.Is(err, amm.ErrInsufficientReserves))

	err = e.ex.RemoveLiquidity(owner, u(100), u(1))
	require.True(t, errors.Is(err, amm.ErrInvalidAmount), "one-sided drain")

	e.requireReserves(t, 100, 200)
	require.Empty(t, e.rec.Drain())
}

func TestRemoveLiquidityZeroAmounts(t *testing.T) {
	e := seeded(t)

	require.NoError(t, e.ex.RemoveLiquidity(owner, nil, u(0)))
	e.requireReserves(t, 100, 200)
	require.Equal(t, uint64(9_900), e.a.BalanceOf(owner).Uint64())
	require.Equal(t, []amm.Event{amm.LiquidityRemoved{Provider: owner, AmountA: u(0), AmountB: u(0)}}, e.rec.Drain())
}

// failingLedger refuses every payout.
type failingLedger struct {
	*ledger.Token
}

func (failingLedger) Transfer(common.Address, common.Address, *uint256.Int) error {
	return errors.New("ledger halted")
}

func TestRemoveLiquiditySecondLegFailureKeepsReservesOnCustody(t *testing.T) {
	e := seeded(t)
	ex, err := amm.Restore(e.ex.State(), e.a, failingLedger{Token: e.b}, nil)
	require.NoError(t, err)

	err = ex.RemoveLiquidity(owner, u(50), u(100))
	require.True(t, errors.Is(err, amm.ErrTransferFailed))

	// leg A was paid out; reserves still equal what custody holds
	require.Equal(t, uint64(50), ex.ReserveA().Uint64())
	require.Equal(t, uint64(200), ex.ReserveB().Uint64())
	require.Equal(t, uint64(50), e.a.BalanceOf(exAddr).Uint64())
	require.NoError(t, ex.CheckInvariants())
}

func TestSwapAForB(t *testing.T) {
	e := seeded(t)
	require.NoError(t, e.a.Approve(user, exAddr, u(10)))

	out, err := e.ex.SwapAForB(user, u(10))
	require.NoError(t, err)
	require.Equal(t, uint64(18), out.Uint64())
	e.requireReserves(t, 110, 182)
	require.Equal(t, uint64(9_990), e.a.BalanceOf(user).Uint64())
	require.Equal(t, uint64(10_018), e.b.BalanceOf(user).Uint64())

	require.Equal(t, []amm.Event{amm.Swap{Caller: user, TokenIn: tokenA, AmountIn: u(10), AmountOut: u(18)}}, e.rec.Drain())
}

func TestSwapBForA(t *testing.T) {
	e := seeded(t)
	require.NoError(t, e.b.Approve(user, exAddr, u(5)))

	out, err := e.ex.SwapBForA(user, u(5))
	require.NoError(t, err)
	require.Equal(t, uint64(2), out.Uint64())
	e.requireReserves(t, 98, 205)

	require.Equal(t, []amm.Event{amm.Swap{Caller: user, TokenIn: tokenB, AmountIn: u(5), AmountOut: u(2)}}, e.rec.Drain())
}

func TestSwapEmptyPool(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.a.Approve(user, exAddr, u(1)))

	_, err := e.ex.SwapAForB(user, u(1))
	require.True(t, errors.Is(err, amm.ErrNoLiquidity))
	_, err = e.ex.SwapBForA(user, u(1))
	require.True(t, errors.Is(err, amm.ErrNoLiquidity))
	e.requireReserves(t, 0, 0)
}

func TestSwapZeroInput(t *testing.T) {
	e := seeded(t)
	_, err := e.ex.SwapAForB(user, u(0))
	require.True(t, errors.Is(err, amm.ErrInvalidAmount))
	e.requireReserves(t, 100, 200)
}

func TestSwapZeroOutputSucceeds(t *testing.T) {
	e := seeded(t)
	require.NoError(t, e.b.Approve(user, exAddr, u(1)))

	// floor(1*100/201) == 0
	out, err := e.ex.SwapBForA(user, u(1))
	require.NoError(t, err)
	require.True(t, out.IsZero())
	e.requireReserves(t, 100, 201)
	require.Len(t, e.rec.Drain(), 1)
}

func TestSwapWithoutApproval(t *testing.T) {
	e := seeded(t)
	_, err := e.ex.SwapAForB(user, u(10))
	require.True(t, errors.Is(err, amm.ErrTransferFailed))
	e.requireReserves(t, 100, 200)
	require.Equal(t, uint64(10_000), e.a.BalanceOf(user).Uint64())
	require.Empty(t, e.rec.Drain())
}

func TestPrice(t *testing.T) {
	e := newEnv(t)
	_, err := e.ex.Price(tokenA)
	require.True(t, errors.Is(err, amm.ErrNoLiquidity))

	e = seeded(t)
	pa, err := e.ex.Price(tokenA)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).Mul(u(2), amm.PriceScale), pa)

	pb, err := e.ex.Price(tokenB)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).Div(amm.PriceScale, u(2)), pb)

	_, err = e.ex.Price(stranger)
	require.True(t, errors.Is(err, amm.ErrUnknownAsset))
}

func TestQuoteMatchesSwap(t *testing.T) {
	e := seeded(t)
	q, err := e.ex.Quote(tokenA, u(10))
	require.NoError(t, err)

	require.NoError(t, e.a.Approve(user, exAddr, u(10)))
	out, err := e.ex.SwapAForB(user, u(10))
	require.NoError(t, err)
	require.Equal(t, q, out)

	_, err = e.ex.Quote(stranger, u(10))
	require.True(t, errors.Is(err, amm.ErrUnknownAsset))
}

func TestTransferOwnership(t *testing.T) {
	e := seeded(t)

	err := e.ex.TransferOwnership(owner, common.Address{})
	require.True(t, errors.Is(err, amm.ErrInvalidOwner))

	require.NoError(t, e.ex.TransferOwnership(owner, user))
	require.Equal(t, user, e.ex.Owner())
	require.Equal(t, []amm.Event{amm.OwnershipTransferred{Previous: owner, Next: user}}, e.rec.Drain())

	err = e.ex.AddLiquidity(owner, u(1), u(1))
	require.True(t, errors.Is(err, amm.ErrUnauthorized))
}

func TestStateRoundTrip(t *testing.T) {
	e := seeded(t)
	restored, err := amm.Restore(e.ex.State(), e.a, e.b, nil)
	require.NoError(t, err)
	require.Equal(t, e.ex.State(), restored.State())
	require.NoError(t, restored.CheckInvariants())

	_, err = amm.Restore(e.ex.State(), e.b, e.a, nil)
	require.Error(t, err)
}

func TestCheckInvariantsDetectsDonation(t *testing.T) {
	e := seeded(t)
	require.NoError(t, e.a.Transfer(user, exAddr, u(1)))
	require.Error(t, e.ex.CheckInvariants())
}

// callbackLedger re-enters the exchange while a pull is in flight.
type callbackLedger struct {
	*ledger.Token
	ex       *amm.Exchange
	observed *uint256.Int
	reentry  error
}

func (l *callbackLedger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if l.ex != nil {
		l.observed = l.ex.ReserveA()
		_, l.reentry = l.ex.SwapAForB(from, amount)
	}
	return l.Token.TransferFrom(spender, from, to, amount)
}

func TestReentrantCallRejected(t *testing.T) {
	e := seeded(t)
	cb := &callbackLedger{Token: e.a}
	ex, err := amm.Restore(e.ex.State(), cb, e.b, nil)
	require.NoError(t, err)
	cb.ex = ex

	require.NoError(t, e.a.Approve(user, exAddr, u(10)))
	out, err := ex.SwapAForB(user, u(10))
	require.NoError(t, err)
	require.Equal(t, uint64(18), out.Uint64())

	require.True(t, errors.Is(cb.reentry, amm.ErrReentrantCall))
	// reserves were already committed when the ledger called back
	require.Equal(t, uint64(110), cb.observed.Uint64())
	require.NoError(t, ex.CheckInvariants())
}
