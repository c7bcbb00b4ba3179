package amm

import (
	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
)

// PriceScale is the fixed-point unit of Price: 1.0 == 10^18.
var PriceScale = uint256.NewInt(1_000_000_000_000_000_000)

// AmountOut prices a swap of amountIn against (reserveIn, reserveOut):
//
//	amountOut = floor(amountIn * reserveOut / (reserveIn + amountIn))
//
// The product is computed in 512 bits so large reserves never overflow, and
// the result is always strictly below reserveOut.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if isZero(reserveIn) || isZero(reserveOut) {
		return nil, ErrNoLiquidity
	}
	if isZero(amountIn) {
		return nil, ErrInvalidAmount
	}
	denom, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow {
		return nil, errors.Wrapf(ErrInvalidAmount, "amount %s overflows reserve %s", amountIn.Dec(), reserveIn.Dec())
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amountIn, reserveOut, denom)
	if overflow {
		return nil, errors.WithStack(ErrOverflow)
	}
	return out, nil
}

// SpotPrice returns reserveOther/reserveThis scaled by PriceScale.
func SpotPrice(reserveThis, reserveOther *uint256.Int) (*uint256.Int, error) {
	if isZero(reserveThis) || isZero(reserveOther) {
		return nil, ErrNoLiquidity
	}
	price, overflow := new(uint256.Int).MulDivOverflow(reserveOther, PriceScale, reserveThis)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "price of %s/%s", reserveOther.Dec(), reserveThis.Dec())
	}
	return price, nil
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
