package service

import (
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpledex/domain/amm"
	"simpledex/infra/metrics"
	"simpledex/infra/sequence"
	entrywal "simpledex/infra/wal/entry"
	exitwal "simpledex/infra/wal/exit"
)

/*
ExchangeService is the ONLY write entry point into the system.

Every command runs under one lock:

	seq -> journal intent -> apply to domain -> outbox events

Rejected commands stay in the journal; they are rejected again, identically,
on replay.
*/
type ExchangeService struct {
	mu sync.RWMutex
	st *state

	// snapMu serializes TakeSnapshot.
	snapMu sync.Mutex

	seqGen   *sequence.Sequencer
	entryWAL *entrywal.WAL
	exitWAL  *exitwal.ExitWAL

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewExchangeService wires all dependencies. The service holds no state
// until Recover or Deploy runs.
func NewExchangeService(
	seqGen *sequence.Sequencer,
	entryWAL *entrywal.WAL,
	exitWAL *exitwal.ExitWAL,
	log *zap.Logger,
	m *metrics.Metrics,
) *ExchangeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExchangeService{
		seqGen:   seqGen,
		entryWAL: entryWAL,
		exitWAL:  exitWAL,
		log:      log.Named("exchange"),
		metrics:  m,
	}
}

// Genesis describes the first deployment: two tokens with Supply minted to
// Deployer on each, and the exchange owned by Deployer.
type Genesis struct {
	Deployer common.Address
	SymbolA  string
	SymbolB  string
	Supply   *uint256.Int
}

// Receipt reports a committed command.
type Receipt struct {
	Seq       uint64
	AmountOut *uint256.Int
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *ExchangeService) Deploy(g Genesis) (Receipt, error) {
	return s.execute(&command{
		kind:    entrywal.RecordDeploy,
		caller:  g.Deployer,
		amountA: g.Supply,
		symbolA: g.SymbolA,
		symbolB: g.SymbolB,
	})
}

func (s *ExchangeService) AddLiquidity(caller common.Address, amountA, amountB *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordAddLiquidity, caller: caller, amountA: amountA, amountB: amountB})
}

func (s *ExchangeService) RemoveLiquidity(caller common.Address, amountA, amountB *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordRemoveLiquidity, caller: caller, amountA: amountA, amountB: amountB})
}

func (s *ExchangeService) SwapAForB(caller common.Address, amountIn *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordSwapAForB, caller: caller, amountA: amountIn})
}

func (s *ExchangeService) SwapBForA(caller common.Address, amountIn *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordSwapBForA, caller: caller, amountA: amountIn})
}

func (s *ExchangeService) TransferOwnership(caller, next common.Address) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordTransferOwnership, caller: caller, target: next})
}

func (s *ExchangeService) Approve(caller, asset, spender common.Address, amount *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordApprove, caller: caller, asset: asset, target: spender, amountA: amount})
}

func (s *ExchangeService) Mint(caller, asset, to common.Address, amount *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordMint, caller: caller, asset: asset, target: to, amountA: amount})
}

func (s *ExchangeService) Transfer(caller, asset, to common.Address, amount *uint256.Int) (Receipt, error) {
	return s.execute(&command{kind: entrywal.RecordTransfer, caller: caller, asset: asset, target: to, amountA: amount})
}

func (s *ExchangeService) execute(c *command) (Receipt, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case c.kind == entrywal.RecordDeploy && s.st != nil:
		return Receipt{}, errors.WithStack(ErrAlreadyDeployed)
	case c.kind != entrywal.RecordDeploy && s.st == nil:
		return Receipt{}, errors.WithStack(ErrNotDeployed)
	}

	data, err := c.encode()
	if err != nil {
		return Receipt{}, err
	}

	// 1️⃣ Journal the intent
	seq := s.seqGen.Next()
	rec := entrywal.NewRecord(c.kind, seq, data)
	if err := s.entryWAL.Append(rec); err != nil {
		return Receipt{}, errors.Wrapf(err, "journal seq %d", seq)
	}

	// 2️⃣ Execute deterministic domain logic
	out, events, err := s.apply(c)
	s.metrics.ObserveCommand(c.kind.String(), err, time.Since(start))
	s.metrics.SetSequence(seq)
	if err != nil {
		s.log.Debug("rejected",
			zap.Uint64("seq", seq),
			zap.Stringer("command", c.kind),
			zap.Stringer("caller", c.caller),
			zap.Error(err))
		return Receipt{Seq: seq}, err
	}

	// 3️⃣ Make the intent durable before any event can leave the process. A
	// published seq must never be reissued after a crash.
	if err := s.entryWAL.Sync(); err != nil {
		s.log.Error("journal sync failed, events held back", zap.Uint64("seq", seq), zap.Error(err))
	} else if err := s.outbox(rec, events); err != nil {
		// 4️⃣ The command is already committed; a failure here is repaired by
		// the next recovery.
		s.log.Error("outbox write failed", zap.Uint64("seq", seq), zap.Error(err))
	}

	s.observeReserves()
	s.log.Debug("committed",
		zap.Uint64("seq", seq),
		zap.Stringer("command", c.kind),
		zap.Stringer("caller", c.caller))
	return Receipt{Seq: seq, AmountOut: out}, nil
}

// apply runs c against the in-memory state. Caller holds s.mu.
func (s *ExchangeService) apply(c *command) (*uint256.Int, []amm.Event, error) {
	if c.kind != entrywal.RecordDeploy {
		if s.st == nil {
			return nil, nil, errors.WithStack(ErrNotDeployed)
		}
		return s.st.apply(c)
	}
	if s.st != nil {
		return nil, nil, errors.WithStack(ErrAlreadyDeployed)
	}

	st, err := deploy(c)
	if err != nil {
		return nil, nil, err
	}
	s.st = st
	s.log.Info("deployed",
		zap.Stringer("exchange", st.exchange.Address()),
		zap.Stringer("tokenA", st.tokenA.Asset()),
		zap.Stringer("tokenB", st.tokenB.Asset()),
		zap.Stringer("owner", st.exchange.Owner()))
	return nil, []amm.Event{Deployed{
		Exchange: st.exchange.Address(),
		TokenA:   st.tokenA.Asset(),
		TokenB:   st.tokenB.Asset(),
		Owner:    st.exchange.Owner(),
	}}, nil
}

func (s *ExchangeService) outbox(rec *entrywal.Record, events []amm.Event) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := encodeEvents(rec.Seq, rec.Time, events)
	if err != nil {
		return err
	}
	return s.exitWAL.PutNew(rec.Seq, payload)
}

func (s *ExchangeService) observeReserves() {
	if s.metrics == nil || s.st == nil {
		return
	}
	s.metrics.SetReserve(s.st.tokenA.Symbol(), toFloat(s.st.exchange.ReserveA()))
	s.metrics.SetReserve(s.st.tokenB.Symbol(), toFloat(s.st.exchange.ReserveB()))
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Pool is a consistent view of the exchange.
type Pool struct {
	Exchange common.Address
	TokenA   common.Address
	TokenB   common.Address
	SymbolA  string
	SymbolB  string
	Owner    common.Address
	ReserveA *uint256.Int
	ReserveB *uint256.Int
	Seq      uint64
}

func (s *ExchangeService) Pool() (Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return Pool{}, errors.WithStack(ErrNotDeployed)
	}
	ex := s.st.exchange
	return Pool{
		Exchange: ex.Address(),
		TokenA:   ex.TokenA(),
		TokenB:   ex.TokenB(),
		SymbolA:  s.st.tokenA.Symbol(),
		SymbolB:  s.st.tokenB.Symbol(),
		Owner:    ex.Owner(),
		ReserveA: ex.ReserveA(),
		ReserveB: ex.ReserveB(),
		Seq:      s.seqGen.Current(),
	}, nil
}

func (s *ExchangeService) Price(asset common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return nil, errors.WithStack(ErrNotDeployed)
	}
	return s.st.exchange.Price(asset)
}

func (s *ExchangeService) Quote(assetIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return nil, errors.WithStack(ErrNotDeployed)
	}
	return s.st.exchange.Quote(assetIn, amountIn)
}

func (s *ExchangeService) BalanceOf(asset, holder common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return nil, errors.WithStack(ErrNotDeployed)
	}
	tok, err := s.st.token(asset)
	if err != nil {
		return nil, err
	}
	return tok.BalanceOf(holder), nil
}

func (s *ExchangeService) Allowance(asset, owner, spender common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return nil, errors.WithStack(ErrNotDeployed)
	}
	tok, err := s.st.token(asset)
	if err != nil {
		return nil, err
	}
	return tok.Allowance(owner, spender), nil
}

func (s *ExchangeService) Deployed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st != nil
}

// CheckInvariants audits the pool against its ledgers.
func (s *ExchangeService) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.st == nil {
		return nil
	}
	return s.st.exchange.CheckInvariants()
}
