package service

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"simpledex/domain/amm"
	"simpledex/domain/ledger"
	entrywal "simpledex/infra/wal/entry"
)

/*
command is the journaled form of one write.

Field use per kind:

	deploy              caller=deployer amountA=supply symbolA symbolB
	mint                caller asset target=to amountA
	approve             caller asset target=spender amountA
	transfer            caller asset target=to amountA
	add/remove          caller amountA amountB
	swap                caller amountA=amountIn
	transfer_ownership  caller target=next
*/
type command struct {
	kind    entrywal.RecordType
	caller  common.Address
	asset   common.Address
	target  common.Address
	amountA *uint256.Int
	amountB *uint256.Int
	symbolA string
	symbolB string
}

const (
	fieldCaller  = "caller"
	fieldAsset   = "asset"
	fieldTarget  = "target"
	fieldAmountA = "amount_a"
	fieldAmountB = "amount_b"
	fieldSymbolA = "symbol_a"
	fieldSymbolB = "symbol_b"
)

func (c *command) encode() ([]byte, error) {
	fields := map[string]string{fieldCaller: c.caller.Hex()}
	if c.asset != (common.Address{}) {
		fields[fieldAsset] = c.asset.Hex()
	}
	if c.target != (common.Address{}) {
		fields[fieldTarget] = c.target.Hex()
	}
	if c.amountA != nil {
		fields[fieldAmountA] = c.amountA.Dec()
	}
	if c.amountB != nil {
		fields[fieldAmountB] = c.amountB.Dec()
	}
	if c.symbolA != "" {
		fields[fieldSymbolA] = c.symbolA
	}
	if c.symbolB != "" {
		fields[fieldSymbolB] = c.symbolB
	}
	return entrywal.EncodePayload(fields)
}

func decodeCommand(rec *entrywal.Record) (*command, error) {
	fields, err := entrywal.DecodePayload(rec.Data)
	if err != nil {
		return nil, err
	}
	c := &command{
		kind:    rec.Type,
		symbolA: fields[fieldSymbolA],
		symbolB: fields[fieldSymbolB],
	}
	for name, dst := range map[string]*common.Address{
		fieldCaller: &c.caller,
		fieldAsset:  &c.asset,
		fieldTarget: &c.target,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if !common.IsHexAddress(v) {
			return nil, errors.Newf("seq %d: bad %s %q", rec.Seq, name, v)
		}
		*dst = common.HexToAddress(v)
	}
	for name, dst := range map[string]**uint256.Int{
		fieldAmountA: &c.amountA,
		fieldAmountB: &c.amountB,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		amt, err := uint256.FromDecimal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "seq %d: bad %s", rec.Seq, name)
		}
		*dst = amt
	}
	return c, nil
}

// ---------------- state ----------------

// state is everything a deploy creates. All access happens under the
// service lock.
type state struct {
	tokenA   *ledger.Token
	tokenB   *ledger.Token
	exchange *amm.Exchange
	recorder *amm.Recorder
}

// Deployment addresses follow the EVM rule: the deployer's nonces 0 and 1
// create the tokens, nonce 2 the exchange.
func deployAddresses(deployer common.Address) (tokenA, tokenB, exchange common.Address) {
	return crypto.CreateAddress(deployer, 0),
		crypto.CreateAddress(deployer, 1),
		crypto.CreateAddress(deployer, 2)
}

func deploy(c *command) (*state, error) {
	if c.caller == (common.Address{}) {
		return nil, errors.WithStack(ErrMissingCaller)
	}
	addrA, addrB, addrEx := deployAddresses(c.caller)
	st := &state{
		tokenA:   ledger.NewToken(addrA, c.symbolA, c.caller),
		tokenB:   ledger.NewToken(addrB, c.symbolB, c.caller),
		recorder: &amm.Recorder{},
	}
	if c.amountA != nil && !c.amountA.IsZero() {
		if err := st.tokenA.Mint(c.caller, c.caller, c.amountA); err != nil {
			return nil, err
		}
		if err := st.tokenB.Mint(c.caller, c.caller, c.amountA); err != nil {
			return nil, err
		}
	}
	ex, err := amm.New(addrEx, c.caller, st.tokenA, st.tokenB, st.recorder)
	if err != nil {
		return nil, err
	}
	st.exchange = ex
	return st, nil
}

func (st *state) token(asset common.Address) (*ledger.Token, error) {
	switch asset {
	case st.tokenA.Asset():
		return st.tokenA, nil
	case st.tokenB.Asset():
		return st.tokenB, nil
	default:
		return nil, errors.Wrapf(amm.ErrUnknownAsset, "%s", asset)
	}
}

// apply executes c against st and returns the swap output (if any) and the
// events it produced. A failed command leaves st unchanged and produces no
// events.
func (st *state) apply(c *command) (*uint256.Int, []amm.Event, error) {
	custody := st.exchange.Address()
	if c.caller == (common.Address{}) {
		return nil, nil, errors.WithStack(ErrMissingCaller)
	}
	if c.caller == custody {
		return nil, nil, errors.Wrap(amm.ErrUnauthorized, "caller is the exchange custody address")
	}

	var (
		out    *uint256.Int
		events []amm.Event
		err    error
	)
	switch c.kind {
	case entrywal.RecordDeploy:
		return nil, nil, errors.WithStack(ErrAlreadyDeployed)

	case entrywal.RecordMint, entrywal.RecordApprove, entrywal.RecordTransfer:
		events, err = st.applyLedger(c, custody)

	case entrywal.RecordAddLiquidity:
		err = st.exchange.AddLiquidity(c.caller, c.amountA, c.amountB)
	case entrywal.RecordRemoveLiquidity:
		err = st.exchange.RemoveLiquidity(c.caller, c.amountA, c.amountB)
	case entrywal.RecordSwapAForB:
		out, err = st.exchange.SwapAForB(c.caller, c.amountA)
	case entrywal.RecordSwapBForA:
		out, err = st.exchange.SwapBForA(c.caller, c.amountA)
	case entrywal.RecordTransferOwnership:
		// The custody address can never call, so it could never hand the role on.
		if c.target == custody {
			return nil, nil, errors.Wrap(ErrCustodyAddress, "transfer ownership")
		}
		err = st.exchange.TransferOwnership(c.caller, c.target)

	default:
		return nil, nil, errors.Newf("unknown command type %d", c.kind)
	}

	events = append(events, st.recorder.Drain()...)
	if err != nil {
		return nil, nil, err
	}
	return out, events, nil
}

func (st *state) applyLedger(c *command, custody common.Address) ([]amm.Event, error) {
	tok, err := st.token(c.asset)
	if err != nil {
		return nil, err
	}
	amount := c.amountA
	if amount == nil {
		amount = new(uint256.Int)
	}

	switch c.kind {
	case entrywal.RecordMint:
		// Crediting custody directly would leave reserves behind the ledger.
		if c.target == custody {
			return nil, errors.Wrap(ErrCustodyAddress, "mint")
		}
		if err := tok.Mint(c.caller, c.target, amount); err != nil {
			return nil, err
		}
		return []amm.Event{Transfer{Asset: tok.Asset(), To: c.target, Amount: amount.Clone()}}, nil

	case entrywal.RecordApprove:
		if err := tok.Approve(c.caller, c.target, amount); err != nil {
			return nil, err
		}
		return []amm.Event{Approval{Asset: tok.Asset(), Owner: c.caller, Spender: c.target, Amount: amount.Clone()}}, nil

	default:
		if c.target == custody {
			return nil, errors.Wrap(ErrCustodyAddress, "transfer")
		}
		if err := tok.Transfer(c.caller, c.target, amount); err != nil {
			return nil, err
		}
		return []amm.Event{Transfer{Asset: tok.Asset(), From: c.caller, To: c.target, Amount: amount.Clone()}}, nil
	}
}
