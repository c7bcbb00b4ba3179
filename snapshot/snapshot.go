package snapshot

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"simpledex/domain/amm"
	"simpledex/domain/ledger"
)

// Snapshot stores addresses as hex and amounts as decimal strings so the
// file stays readable and independent of in-memory representations.
type Snapshot struct {
	Seq      uint64
	Created  time.Time
	Exchange ExchangeEntry
	Tokens   []TokenEntry
}

type ExchangeEntry struct {
	Address  string
	TokenA   string
	TokenB   string
	Owner    string
	ReserveA string
	ReserveB string
}

type TokenEntry struct {
	Address     string
	Symbol      string
	Minter      string
	TotalSupply string
	Balances    []BalanceEntry
	Allowances  []AllowanceEntry
}

type BalanceEntry struct {
	Holder string
	Amount string
}

type AllowanceEntry struct {
	Owner   string
	Spender string
	Amount  string
}

// New captures the given states.
func New(seq uint64, ex amm.State, tokens ...ledger.State) Snapshot {
	s := Snapshot{
		Seq:     seq,
		Created: time.Now().UTC(),
		Exchange: ExchangeEntry{
			Address:  ex.Address.Hex(),
			TokenA:   ex.TokenA.Hex(),
			TokenB:   ex.TokenB.Hex(),
			Owner:    ex.Owner.Hex(),
			ReserveA: ex.ReserveA.Dec(),
			ReserveB: ex.ReserveB.Dec(),
		},
		Tokens: make([]TokenEntry, 0, len(tokens)),
	}
	for _, t := range tokens {
		te := TokenEntry{
			Address:     t.Address.Hex(),
			Symbol:      t.Symbol,
			Minter:      t.Minter.Hex(),
			TotalSupply: t.TotalSupply.Dec(),
		}
		for _, b := range t.Balances {
			te.Balances = append(te.Balances, BalanceEntry{Holder: b.Holder.Hex(), Amount: b.Amount.Dec()})
		}
		for _, a := range t.Allowances {
			te.Allowances = append(te.Allowances, AllowanceEntry{
				Owner: a.Owner.Hex(), Spender: a.Spender.Hex(), Amount: a.Amount.Dec(),
			})
		}
		s.Tokens = append(s.Tokens, te)
	}
	return s
}

// ExchangeState decodes the exchange entry.
func (s *Snapshot) ExchangeState() (amm.State, error) {
	var (
		st  amm.State
		err error
	)
	e := s.Exchange
	if st.Address, err = parseAddress(e.Address); err != nil {
		return st, err
	}
	if st.TokenA, err = parseAddress(e.TokenA); err != nil {
		return st, err
	}
	if st.TokenB, err = parseAddress(e.TokenB); err != nil {
		return st, err
	}
	if st.Owner, err = parseAddress(e.Owner); err != nil {
		return st, err
	}
	if st.ReserveA, err = parseAmount(e.ReserveA); err != nil {
		return st, err
	}
	if st.ReserveB, err = parseAmount(e.ReserveB); err != nil {
		return st, err
	}
	return st, nil
}

// TokenStates decodes every token entry, in stored order.
func (s *Snapshot) TokenStates() ([]ledger.State, error) {
	out := make([]ledger.State, 0, len(s.Tokens))
	for _, te := range s.Tokens {
		st, err := te.state()
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot: token %s", te.Symbol)
		}
		out = append(out, st)
	}
	return out, nil
}

func (te TokenEntry) state() (ledger.State, error) {
	var (
		st  = ledger.State{Symbol: te.Symbol}
		err error
	)
	if st.Address, err = parseAddress(te.Address); err != nil {
		return st, err
	}
	if st.Minter, err = parseAddress(te.Minter); err != nil {
		return st, err
	}
	if st.TotalSupply, err = parseAmount(te.TotalSupply); err != nil {
		return st, err
	}
	for _, b := range te.Balances {
		var bal ledger.Balance
		if bal.Holder, err = parseAddress(b.Holder); err != nil {
			return st, err
		}
		if bal.Amount, err = parseAmount(b.Amount); err != nil {
			return st, err
		}
		st.Balances = append(st.Balances, bal)
	}
	for _, a := range te.Allowances {
		var al ledger.AllowanceEntry
		if al.Owner, err = parseAddress(a.Owner); err != nil {
			return st, err
		}
		if al.Spender, err = parseAddress(a.Spender); err != nil {
			return st, err
		}
		if al.Amount, err = parseAmount(a.Amount); err != nil {
			return st, err
		}
		st.Allowances = append(st.Allowances, al)
	}
	return st, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Newf("snapshot: bad address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot: bad amount %q", s)
	}
	return v, nil
}
