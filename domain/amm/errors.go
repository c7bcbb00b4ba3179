package amm

import "github.com/cockroachdb/errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNoLiquidity          = errors.New("no liquidity")
	ErrInsufficientReserves = errors.New("insufficient reserves")
	ErrTransferFailed       = errors.New("transfer failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnknownAsset         = errors.New("unknown asset")

	ErrIdenticalAssets = errors.New("asset A and asset B are identical")
	ErrInvalidOwner    = errors.New("invalid owner")
	ErrReentrantCall   = errors.New("reentrant call")
	ErrOverflow        = errors.New("arithmetic overflow")
)
