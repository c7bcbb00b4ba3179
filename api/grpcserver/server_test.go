package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"simpledex/api/dexrpc"
	"simpledex/infra/sequence"
	entrywal "simpledex/infra/wal/entry"
	exitwal "simpledex/infra/wal/exit"
	"simpledex/service"
)

var (
	deployer = common.HexToAddress("0xd000000000000000000000000000000000000001")
	user     = common.HexToAddress("0xd000000000000000000000000000000000000002")
)

type testEnv struct {
	conn *grpc.ClientConn
	pool *dexrpc.PoolResponse
}

// startServer deploys a fresh exchange and serves it over an in-memory
// listener.
func startServer(t *testing.T, secret string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	entry, err := entrywal.Open(entrywal.Config{Dir: filepath.Join(dir, "wal")})
	require.NoError(t, err)
	exit, err := exitwal.Open(filepath.Join(dir, "outbox"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = entry.Close()
		_ = exit.Close()
	})

	svc := service.NewExchangeService(sequence.New(0), entry, exit, nil, nil)
	_, err = svc.Deploy(service.Genesis{
		Deployer: deployer,
		SymbolA:  "TKA",
		SymbolB:  "TKB",
		Supply:   uint256.NewInt(1_000_000),
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer(ServerOptions(NewAuthenticator(secret), zap.NewNop())...)
	Register(g, NewServer(svc))
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pool, err := dexrpc.NewClient(conn).Pool(context.Background())
	require.NoError(t, err)
	return &testEnv{conn: conn, pool: pool}
}

func (e *testEnv) as(addr common.Address) *dexrpc.Client {
	return dexrpc.NewClient(e.conn, dexrpc.WithCaller(addr))
}

func requireCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, status.Code(err), "error: %v", err)
}

func seedPool(t *testing.T, e *testEnv) {
	t.Helper()
	ctx := context.Background()
	owner := e.as(deployer)

	_, err := owner.Approve(ctx, &dexrpc.ApproveRequest{Asset: e.pool.TokenA, Spender: e.pool.Exchange, Amount: "100"})
	require.NoError(t, err)
	_, err = owner.Approve(ctx, &dexrpc.ApproveRequest{Asset: e.pool.TokenB, Spender: e.pool.Exchange, Amount: "200"})
	require.NoError(t, err)
	_, err = owner.AddLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: "100", AmountB: "200"})
	require.NoError(t, err)
	_, err = owner.Transfer(ctx, &dexrpc.TransferRequest{Asset: e.pool.TokenA, To: user.Hex(), Amount: "1000"})
	require.NoError(t, err)
}

func TestSwapOverGRPC(t *testing.T) {
	e := startServer(t, "")
	seedPool(t, e)
	ctx := context.Background()
	trader := e.as(user)

	_, err := trader.Approve(ctx, &dexrpc.ApproveRequest{Asset: e.pool.TokenA, Spender: e.pool.Exchange, Amount: "10"})
	require.NoError(t, err)

	quote, err := trader.Quote(ctx, &dexrpc.QuoteRequest{AssetIn: e.pool.TokenA, AmountIn: "10"})
	require.NoError(t, err)
	require.Equal(t, "18", quote.AmountOut)

	tx, err := trader.SwapAForB(ctx, &dexrpc.SwapRequest{AmountIn: "10"})
	require.NoError(t, err)
	require.Equal(t, "18", tx.AmountOut)

	pool, err := trader.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, "110", pool.ReserveA)
	require.Equal(t, "182", pool.ReserveB)
	require.Equal(t, tx.Seq, pool.Seq)

	bal, err := trader.Balance(ctx, &dexrpc.BalanceRequest{Asset: e.pool.TokenB, Holder: user.Hex()})
	require.NoError(t, err)
	require.Equal(t, "18", bal.Amount)

	price, err := trader.Price(ctx, &dexrpc.PriceRequest{Asset: e.pool.TokenB})
	require.NoError(t, err)
	require.Equal(t, "604395604395604395", price.Price) // 110e18 / 182
}

func TestErrorCodes(t *testing.T) {
	e := startServer(t, "")
	ctx := context.Background()
	owner, trader := e.as(deployer), e.as(user)

	_, err := trader.SwapAForB(ctx, &dexrpc.SwapRequest{AmountIn: "10"})
	requireCode(t, codes.FailedPrecondition, err)

	_, err = trader.Price(ctx, &dexrpc.PriceRequest{Asset: e.pool.TokenA})
	requireCode(t, codes.FailedPrecondition, err)

	_, err = trader.AddLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: "1", AmountB: "1"})
	requireCode(t, codes.PermissionDenied, err)

	_, err = owner.AddLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: "1", AmountB: "1"})
	requireCode(t, codes.Aborted, err)

	seedPool(t, e)

	_, err = trader.SwapBForA(ctx, &dexrpc.SwapRequest{AmountIn: "0"})
	requireCode(t, codes.InvalidArgument, err)

	_, err = trader.SwapBForA(ctx, &dexrpc.SwapRequest{AmountIn: "-5"})
	requireCode(t, codes.InvalidArgument, err)

	_, err = owner.RemoveLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: "101", AmountB: "1"})
	requireCode(t, codes.FailedPrecondition, err)

	_, err = trader.Price(ctx, &dexrpc.PriceRequest{Asset: user.Hex()})
	requireCode(t, codes.InvalidArgument, err)

	_, err = trader.Transfer(ctx, &dexrpc.TransferRequest{Asset: e.pool.TokenA, To: "nope", Amount: "1"})
	requireCode(t, codes.InvalidArgument, err)

	anonymous := dexrpc.NewClient(e.conn)
	_, err = anonymous.SwapAForB(ctx, &dexrpc.SwapRequest{AmountIn: "1"})
	requireCode(t, codes.Unauthenticated, err)
	_, err = anonymous.Pool(ctx)
	require.NoError(t, err)
}

func TestJWTAuthentication(t *testing.T) {
	const secret = "test-secret"
	e := startServer(t, secret)
	ctx := context.Background()

	tok, err := IssueToken(secret, deployer, 0)
	require.NoError(t, err)
	owner := dexrpc.NewClient(e.conn, dexrpc.WithBearerToken(tok))
	_, err = owner.Approve(ctx, &dexrpc.ApproveRequest{Asset: e.pool.TokenA, Spender: e.pool.Exchange, Amount: "1"})
	require.NoError(t, err)

	// the development header is ignored once tokens are required
	_, err = e.as(deployer).Approve(ctx, &dexrpc.ApproveRequest{Asset: e.pool.TokenA, Spender: e.pool.Exchange, Amount: "1"})
	requireCode(t, codes.Unauthenticated, err)

	forged, err := IssueToken("other-secret", deployer, 0)
	require.NoError(t, err)
	_, err = dexrpc.NewClient(e.conn, dexrpc.WithBearerToken(forged)).Pool(ctx)
	requireCode(t, codes.Unauthenticated, err)

	tok, err = IssueToken(secret, user, 0)
	require.NoError(t, err)
	_, err = dexrpc.NewClient(e.conn, dexrpc.WithBearerToken(tok)).
		TransferOwnership(ctx, &dexrpc.TransferOwnershipRequest{NewOwner: user.Hex()})
	requireCode(t, codes.PermissionDenied, err)
}

func TestHealth(t *testing.T) {
	e := startServer(t, "")
	resp, err := healthpb.NewHealthClient(e.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: dexrpc.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
