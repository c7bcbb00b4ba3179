package ledger

import "github.com/cockroachdb/errors"

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNotMinter             = errors.New("caller is not the minter")
	ErrSupplyOverflow        = errors.New("total supply overflow")
)
