package grpcserver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"simpledex/api/dexrpc"
	"simpledex/service"
)

// Server adapts ExchangeService to gRPC.
type Server struct {
	svc *service.ExchangeService
}

func NewServer(svc *service.ExchangeService) *Server {
	return &Server{svc: svc}
}

var _ dexrpc.ExchangeServer = (*Server)(nil)

// -------------------- Queries --------------------

func (s *Server) Pool(ctx context.Context, _ *dexrpc.PoolRequest) (*dexrpc.PoolResponse, error) {
	p, err := s.svc.Pool()
	if err != nil {
		return nil, toStatus(err)
	}
	return &dexrpc.PoolResponse{
		Exchange: p.Exchange.Hex(),
		TokenA:   p.TokenA.Hex(),
		TokenB:   p.TokenB.Hex(),
		SymbolA:  p.SymbolA,
		SymbolB:  p.SymbolB,
		Owner:    p.Owner.Hex(),
		ReserveA: p.ReserveA.Dec(),
		ReserveB: p.ReserveB.Dec(),
		Seq:      p.Seq,
	}, nil
}

func (s *Server) Price(ctx context.Context, req *dexrpc.PriceRequest) (*dexrpc.PriceResponse, error) {
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	price, err := s.svc.Price(asset)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dexrpc.PriceResponse{Price: price.Dec()}, nil
}

func (s *Server) Quote(ctx context.Context, req *dexrpc.QuoteRequest) (*dexrpc.QuoteResponse, error) {
	asset, err := parseAddress("assetIn", req.AssetIn)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.Quote(asset, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dexrpc.QuoteResponse{AmountOut: out.Dec()}, nil
}

func (s *Server) Balance(ctx context.Context, req *dexrpc.BalanceRequest) (*dexrpc.AmountResponse, error) {
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		return nil, err
	}
	bal, err := s.svc.BalanceOf(asset, holder)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dexrpc.AmountResponse{Amount: bal.Dec()}, nil
}

func (s *Server) Allowance(ctx context.Context, req *dexrpc.AllowanceRequest) (*dexrpc.AmountResponse, error) {
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		return nil, err
	}
	amt, err := s.svc.Allowance(asset, owner, spender)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dexrpc.AmountResponse{Amount: amt.Dec()}, nil
}

// -------------------- Commands --------------------

func (s *Server) AddLiquidity(ctx context.Context, req *dexrpc.LiquidityRequest) (*dexrpc.TxResponse, error) {
	a, b, err := parsePair(req)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.AddLiquidity(CallerFrom(ctx), a, b))
}

func (s *Server) RemoveLiquidity(ctx context.Context, req *dexrpc.LiquidityRequest) (*dexrpc.TxResponse, error) {
	a, b, err := parsePair(req)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.RemoveLiquidity(CallerFrom(ctx), a, b))
}

func (s *Server) SwapAForB(ctx context.Context, req *dexrpc.SwapRequest) (*dexrpc.TxResponse, error) {
	in, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.SwapAForB(CallerFrom(ctx), in))
}

func (s *Server) SwapBForA(ctx context.Context, req *dexrpc.SwapRequest) (*dexrpc.TxResponse, error) {
	in, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.SwapBForA(CallerFrom(ctx), in))
}

func (s *Server) TransferOwnership(ctx context.Context, req *dexrpc.TransferOwnershipRequest) (*dexrpc.TxResponse, error) {
	next, err := parseAddress("newOwner", req.NewOwner)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.TransferOwnership(CallerFrom(ctx), next))
}

func (s *Server) Approve(ctx context.Context, req *dexrpc.ApproveRequest) (*dexrpc.TxResponse, error) {
	asset, target, amount, err := parseLedgerArgs(req.Asset, "spender", req.Spender, req.Amount)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.Approve(CallerFrom(ctx), asset, target, amount))
}

func (s *Server) Mint(ctx context.Context, req *dexrpc.MintRequest) (*dexrpc.TxResponse, error) {
	asset, target, amount, err := parseLedgerArgs(req.Asset, "to", req.To, req.Amount)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.Mint(CallerFrom(ctx), asset, target, amount))
}

func (s *Server) Transfer(ctx context.Context, req *dexrpc.TransferRequest) (*dexrpc.TxResponse, error) {
	asset, target, amount, err := parseLedgerArgs(req.Asset, "to", req.To, req.Amount)
	if err != nil {
		return nil, err
	}
	return txResponse(s.svc.Transfer(CallerFrom(ctx), asset, target, amount))
}

// -------------------- Converters --------------------

func txResponse(r service.Receipt, err error) (*dexrpc.TxResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &dexrpc.TxResponse{Seq: r.Seq}
	if r.AmountOut != nil {
		resp.AmountOut = r.AmountOut.Dec()
	}
	return resp, nil
}

func parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, status.Errorf(codes.InvalidArgument, "%s: invalid address %q", field, v)
	}
	return common.HexToAddress(v), nil
}

func parseAmount(field, v string) (*uint256.Int, error) {
	amt, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: invalid amount %q: %v", field, v, err)
	}
	return amt, nil
}

func parsePair(req *dexrpc.LiquidityRequest) (*uint256.Int, *uint256.Int, error) {
	a, err := parseAmount("amountA", req.AmountA)
	if err != nil {
		return nil, nil, err
	}
	b, err := parseAmount("amountB", req.AmountB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func parseLedgerArgs(assetStr, targetField, targetStr, amountStr string) (common.Address, common.Address, *uint256.Int, error) {
	asset, err := parseAddress("asset", assetStr)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	target, err := parseAddress(targetField, targetStr)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", amountStr)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return asset, target, amount, nil
}
