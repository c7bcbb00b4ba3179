package amm

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is the persisted form of an Exchange.
type State struct {
	Address  common.Address
	TokenA   common.Address
	TokenB   common.Address
	Owner    common.Address
	ReserveA *uint256.Int
	ReserveB *uint256.Int
}

func (e *Exchange) State() State {
	return State{
		Address:  e.address,
		TokenA:   e.TokenA(),
		TokenB:   e.TokenB(),
		Owner:    e.owner,
		ReserveA: e.ReserveA(),
		ReserveB: e.ReserveB(),
	}
}

// Restore rebuilds an Exchange from a snapshot. The ledgers must be the ones
// the state was taken against.
func Restore(s State, ledgerA, ledgerB Ledger, emitter Emitter) (*Exchange, error) {
	e, err := New(s.Address, s.Owner, ledgerA, ledgerB, emitter)
	if err != nil {
		return nil, err
	}
	if e.TokenA() != s.TokenA || e.TokenB() != s.TokenB {
		return nil, errors.Newf("amm: snapshot tokens (%s, %s) do not match ledgers (%s, %s)",
			s.TokenA, s.TokenB, e.TokenA(), e.TokenB())
	}
	e.reserveA.Set(orZero(s.ReserveA))
	e.reserveB.Set(orZero(s.ReserveB))
	return e, nil
}

// CheckInvariants verifies reserve pairing and that each reserve matches the
// exchange's balance on its ledger.
func (e *Exchange) CheckInvariants() error {
	if e.reserveA.IsZero() != e.reserveB.IsZero() {
		return errors.Newf("amm: one-sided pool (%s, %s)", e.reserveA.Dec(), e.reserveB.Dec())
	}
	if bal := e.ledgerA.BalanceOf(e.address); !bal.Eq(&e.reserveA) {
		return errors.Newf("amm: reserveA %s != custody balance %s", e.reserveA.Dec(), bal.Dec())
	}
	if bal := e.ledgerB.BalanceOf(e.address); !bal.Eq(&e.reserveB) {
		return errors.Newf("amm: reserveB %s != custody balance %s", e.reserveB.Dec(), bal.Dec())
	}
	return nil
}
