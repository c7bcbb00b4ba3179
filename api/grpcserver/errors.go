package grpcserver

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"simpledex/domain/amm"
	"simpledex/domain/ledger"
	"simpledex/service"
)

// errorCodes is checked in order; the first match wins. Transfer failures
// come first because they wrap the ledger error that caused them.
var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{amm.ErrTransferFailed, codes.Aborted},
	{amm.ErrReentrantCall, codes.Aborted},

	{amm.ErrUnauthorized, codes.PermissionDenied},
	{ledger.ErrNotMinter, codes.PermissionDenied},
	{service.ErrMissingCaller, codes.Unauthenticated},

	{amm.ErrInvalidAmount, codes.InvalidArgument},
	{amm.ErrUnknownAsset, codes.InvalidArgument},
	{amm.ErrInvalidOwner, codes.InvalidArgument},
	{ledger.ErrZeroAddress, codes.InvalidArgument},
	{service.ErrCustodyAddress, codes.InvalidArgument},

	{amm.ErrNoLiquidity, codes.FailedPrecondition},
	{amm.ErrInsufficientReserves, codes.FailedPrecondition},
	{ledger.ErrInsufficientBalance, codes.FailedPrecondition},
	{ledger.ErrInsufficientAllowance, codes.FailedPrecondition},
	{service.ErrNotDeployed, codes.FailedPrecondition},

	{service.ErrAlreadyDeployed, codes.AlreadyExists},
	{amm.ErrOverflow, codes.OutOfRange},
	{ledger.ErrSupplyOverflow, codes.OutOfRange},
}

func toStatus(err error) error {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
