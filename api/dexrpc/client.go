package dexrpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Metadata keys that carry the caller identity.
const (
	HeaderAuthorization = "authorization"
	HeaderCaller        = "x-caller"
)

type Client struct {
	conn grpc.ClientConnInterface
	md   []string
}

type ClientOption func(*Client)

// WithBearerToken authenticates every call with a JWT.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.md = append(c.md, HeaderAuthorization, "Bearer "+token)
	}
}

// WithCaller names the caller directly. Servers honour it only when JWT
// authentication is disabled.
func WithCaller(addr common.Address) ClientOption {
	return func(c *Client) {
		c.md = append(c.md, HeaderCaller, addr.Hex())
	}
}

func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if len(c.md) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, c.md...)
	}
	return c.conn.Invoke(ctx, FullMethod(method), req, resp, grpc.CallContentSubtype(CodecName))
}

// -------------------- Queries --------------------

func (c *Client) Pool(ctx context.Context) (*PoolResponse, error) {
	out := new(PoolResponse)
	return out, c.invoke(ctx, MethodPool, &PoolRequest{}, out)
}

func (c *Client) Price(ctx context.Context, req *PriceRequest) (*PriceResponse, error) {
	out := new(PriceResponse)
	return out, c.invoke(ctx, MethodPrice, req, out)
}

func (c *Client) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	return out, c.invoke(ctx, MethodQuote, req, out)
}

func (c *Client) Balance(ctx context.Context, req *BalanceRequest) (*AmountResponse, error) {
	out := new(AmountResponse)
	return out, c.invoke(ctx, MethodBalance, req, out)
}

func (c *Client) Allowance(ctx context.Context, req *AllowanceRequest) (*AmountResponse, error) {
	out := new(AmountResponse)
	return out, c.invoke(ctx, MethodAllowance, req, out)
}

// -------------------- Commands --------------------

func (c *Client) AddLiquidity(ctx context.Context, req *LiquidityRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodAddLiquidity, req)
}

func (c *Client) RemoveLiquidity(ctx context.Context, req *LiquidityRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodRemoveLiquidity, req)
}

func (c *Client) SwapAForB(ctx context.Context, req *SwapRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodSwapAForB, req)
}

func (c *Client) SwapBForA(ctx context.Context, req *SwapRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodSwapBForA, req)
}

func (c *Client) TransferOwnership(ctx context.Context, req *TransferOwnershipRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodTransferOwnership, req)
}

func (c *Client) Approve(ctx context.Context, req *ApproveRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodApprove, req)
}

func (c *Client) Mint(ctx context.Context, req *MintRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodMint, req)
}

func (c *Client) Transfer(ctx context.Context, req *TransferRequest) (*TxResponse, error) {
	return c.tx(ctx, MethodTransfer, req)
}

func (c *Client) tx(ctx context.Context, method string, req any) (*TxResponse, error) {
	out := new(TxResponse)
	if err := c.invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
