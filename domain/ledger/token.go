package ledger

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token tracks balances and allowances of one asset. It is single-writer,
// like the exchange that consumes it.
type Token struct {
	address common.Address
	symbol  string
	minter  common.Address

	supply     uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

func NewToken(address common.Address, symbol string, minter common.Address) *Token {
	return &Token{
		address:    address,
		symbol:     symbol,
		minter:     minter,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *Token) Asset() common.Address  { return t.address }
func (t *Token) Symbol() string         { return t.symbol }
func (t *Token) Minter() common.Address { return t.minter }

func (t *Token) TotalSupply() *uint256.Int { return t.supply.Clone() }

func (t *Token) BalanceOf(holder common.Address) *uint256.Int {
	if b, ok := t.balances[holder]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint credits amount to `to`. Only the minter may mint.
func (t *Token) Mint(caller, to common.Address, amount *uint256.Int) error {
	if caller != t.minter {
		return errors.Wrapf(ErrNotMinter, "%s on %s", caller, t.symbol)
	}
	if to == (common.Address{}) {
		return errors.Wrap(ErrZeroAddress, "mint")
	}
	supply, overflow := new(uint256.Int).AddOverflow(&t.supply, orZero(amount))
	if overflow {
		return errors.WithStack(ErrSupplyOverflow)
	}
	t.supply = *supply
	t.credit(to, orZero(amount))
	return nil
}

// Approve sets (not increments) the allowance of spender over owner's funds.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return errors.Wrap(ErrZeroAddress, "approve")
	}
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = orZero(amount).Clone()
	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	if to == (common.Address{}) {
		return errors.Wrap(ErrZeroAddress, "transfer")
	}
	if t.BalanceOf(from).Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s %s, need %s",
			from, t.BalanceOf(from).Dec(), t.symbol, amount.Dec())
	}
	t.debit(from, amount)
	t.credit(to, amount)
	return nil
}

// TransferFrom moves amount from `from` to `to` on behalf of spender,
// consuming allowance. Balance and allowance are both checked before either
// is touched.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	if to == (common.Address{}) {
		return errors.Wrap(ErrZeroAddress, "transferFrom")
	}
	allowance := t.allowances[from][spender]
	if t.Allowance(from, spender).Lt(amount) {
		return errors.Wrapf(ErrInsufficientAllowance, "%s allowed %s %s of %s, need %s",
			from, spender, t.Allowance(from, spender).Dec(), t.symbol, amount.Dec())
	}
	if t.BalanceOf(from).Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s %s, need %s",
			from, t.BalanceOf(from).Dec(), t.symbol, amount.Dec())
	}
	if allowance != nil {
		allowance.Sub(allowance, amount)
	}
	t.debit(from, amount)
	t.credit(to, amount)
	return nil
}

func (t *Token) credit(to common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	bal, ok := t.balances[to]
	if !ok {
		bal = new(uint256.Int)
		t.balances[to] = bal
	}
	// Cannot overflow: every balance is bounded by the total supply.
	bal.Add(bal, amount)
}

func (t *Token) debit(from common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	bal := t.balances[from]
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(t.balances, from)
	}
}

// ---- persistence ----

type Balance struct {
	Holder common.Address
	Amount *uint256.Int
}

type AllowanceEntry struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

// State is the persisted form of a Token. Entries are sorted so equal
// ledgers produce equal states.
type State struct {
	Address     common.Address
	Symbol      string
	Minter      common.Address
	TotalSupply *uint256.Int
	Balances    []Balance
	Allowances  []AllowanceEntry
}

func (t *Token) State() State {
	s := State{
		Address:     t.address,
		Symbol:      t.symbol,
		Minter:      t.minter,
		TotalSupply: t.supply.Clone(),
		Balances:    make([]Balance, 0, len(t.balances)),
	}
	for holder, amt := range t.balances {
		s.Balances = append(s.Balances, Balance{Holder: holder, Amount: amt.Clone()})
	}
	sort.Slice(s.Balances, func(i, j int) bool {
		return s.Balances[i].Holder.Cmp(s.Balances[j].Holder) < 0
	})
	for owner, bySpender := range t.allowances {
		for spender, amt := range bySpender {
			if amt.IsZero() {
				continue
			}
			s.Allowances = append(s.Allowances, AllowanceEntry{Owner: owner, Spender: spender, Amount: amt.Clone()})
		}
	}
	sort.Slice(s.Allowances, func(i, j int) bool {
		a, b := s.Allowances[i], s.Allowances[j]
		if c := a.Owner.Cmp(b.Owner); c != 0 {
			return c < 0
		}
		return a.Spender.Cmp(b.Spender) < 0
	})
	return s
}

// Restore rebuilds a Token and verifies that balances sum to the supply.
func Restore(s State) (*Token, error) {
	t := NewToken(s.Address, s.Symbol, s.Minter)
	t.supply.Set(orZero(s.TotalSupply))
	sum := new(uint256.Int)
	for _, b := range s.Balances {
		var overflow bool
		sum, overflow = sum.AddOverflow(sum, orZero(b.Amount))
		if overflow {
			return nil, errors.WithStack(ErrSupplyOverflow)
		}
		t.credit(b.Holder, orZero(b.Amount))
	}
	if !sum.Eq(&t.supply) {
		return nil, errors.Newf("ledger: %s balances sum to %s, supply is %s", s.Symbol, sum.Dec(), t.supply.Dec())
	}
	for _, a := range s.Allowances {
		if err := t.Approve(a.Owner, a.Spender, a.Amount); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
