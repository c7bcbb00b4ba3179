package ledger

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	minter  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	spender = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	tokenID = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
)

func newToken(t *testing.T) *Token {
	t.Helper()
	tok := NewToken(tokenID, "TKA", minter)
	require.NoError(t, tok.Mint(minter, alice, uint256.NewInt(1000)))
	return tok
}

func TestMintOnlyByMinter(t *testing.T) {
	tok := newToken(t)

	err := tok.Mint(alice, alice, uint256.NewInt(1))
	require.True(t, errors.Is(err, ErrNotMinter))

	err = tok.Mint(minter, common.Address{}, uint256.NewInt(1))
	require.True(t, errors.Is(err, ErrZeroAddress))

	require.Equal(t, uint64(1000), tok.TotalSupply().Uint64())
	require.Equal(t, uint64(1000), tok.BalanceOf(alice).Uint64())
}

func TestTransfer(t *testing.T) {
	tok := newToken(t)

	require.NoError(t, tok.Transfer(alice, bob, uint256.NewInt(400)))
	require.Equal(t, uint64(600), tok.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(400), tok.BalanceOf(bob).Uint64())

	err := tok.Transfer(bob, alice, uint256.NewInt(401))
	require.True(t, errors.Is(err, ErrInsufficientBalance))
	require.Equal(t, uint64(400), tok.BalanceOf(bob).Uint64())

	// zero transfers are legal, as on ERC-20
	require.NoError(t, tok.Transfer(bob, alice, new(uint256.Int)))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Approve(alice, spender, uint256.NewInt(300)))

	require.NoError(t, tok.TransferFrom(spender, alice, bob, uint256.NewInt(200)))
	require.Equal(t, uint64(100), tok.Allowance(alice, spender).Uint64())
	require.Equal(t, uint64(200), tok.BalanceOf(bob).Uint64())

	err := tok.TransferFrom(spender, alice, bob, uint256.NewInt(101))
	require.True(t, errors.Is(err, ErrInsufficientAllowance))
	require.Equal(t, uint64(100), tok.Allowance(alice, spender).Uint64())
}

func TestTransferFromInsufficientBalanceLeavesAllowance(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Approve(alice, spender, uint256.NewInt(5000)))

	err := tok.TransferFrom(spender, alice, bob, uint256.NewInt(1001))
	require.True(t, errors.Is(err, ErrInsufficientBalance))
	require.Equal(t, uint64(5000), tok.Allowance(alice, spender).Uint64())
	require.True(t, tok.BalanceOf(bob).IsZero())
}

func TestStateRestore(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Transfer(alice, bob, uint256.NewInt(250)))
	require.NoError(t, tok.Approve(bob, spender, uint256.NewInt(7)))

	restored, err := Restore(tok.State())
	require.NoError(t, err)
	require.Equal(t, tok.State(), restored.State())
	require.Equal(t, uint64(7), restored.Allowance(bob, spender).Uint64())
}

func TestRestoreRejectsSupplyMismatch(t *testing.T) {
	s := newToken(t).State()
	s.TotalSupply = uint256.NewInt(999)

	_, err := Restore(s)
	require.Error(t, err)
}
