package service

import "github.com/cockroachdb/errors"

var (
	ErrNotDeployed     = errors.New("exchange not deployed")
	ErrAlreadyDeployed = errors.New("exchange already deployed")
	ErrCustodyAddress  = errors.New("exchange custody address cannot be used directly")
	ErrMissingCaller   = errors.New("missing caller")
)
