package dexrpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "simpledex.v1.Exchange"

// Method names.
const (
	MethodPool              = "Pool"
	MethodPrice             = "Price"
	MethodQuote             = "Quote"
	MethodBalance           = "Balance"
	MethodAllowance         = "Allowance"
	MethodAddLiquidity      = "AddLiquidity"
	MethodRemoveLiquidity   = "RemoveLiquidity"
	MethodSwapAForB         = "SwapAForB"
	MethodSwapBForA         = "SwapBForA"
	MethodTransferOwnership = "TransferOwnership"
	MethodApprove           = "Approve"
	MethodMint              = "Mint"
	MethodTransfer          = "Transfer"
)

// FullMethod returns the gRPC path of a method, e.g. /simpledex.v1.Exchange/Pool.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type ExchangeServer interface {
	Pool(context.Context, *PoolRequest) (*PoolResponse, error)
	Price(context.Context, *PriceRequest) (*PriceResponse, error)
	Quote(context.Context, *QuoteRequest) (*QuoteResponse, error)
	Balance(context.Context, *BalanceRequest) (*AmountResponse, error)
	Allowance(context.Context, *AllowanceRequest) (*AmountResponse, error)

	AddLiquidity(context.Context, *LiquidityRequest) (*TxResponse, error)
	RemoveLiquidity(context.Context, *LiquidityRequest) (*TxResponse, error)
	SwapAForB(context.Context, *SwapRequest) (*TxResponse, error)
	SwapBForA(context.Context, *SwapRequest) (*TxResponse, error)
	TransferOwnership(context.Context, *TransferOwnershipRequest) (*TxResponse, error)
	Approve(context.Context, *ApproveRequest) (*TxResponse, error)
	Mint(context.Context, *MintRequest) (*TxResponse, error)
	Transfer(context.Context, *TransferRequest) (*TxResponse, error)
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ExchangeServiceDesc, srv)
}

var ExchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPool, ExchangeServer.Pool),
		unary(MethodPrice, ExchangeServer.Price),
		unary(MethodQuote, ExchangeServer.Quote),
		unary(MethodBalance, ExchangeServer.Balance),
		unary(MethodAllowance, ExchangeServer.Allowance),
		unary(MethodAddLiquidity, ExchangeServer.AddLiquidity),
		unary(MethodRemoveLiquidity, ExchangeServer.RemoveLiquidity),
		unary(MethodSwapAForB, ExchangeServer.SwapAForB),
		unary(MethodSwapBForA, ExchangeServer.SwapBForA),
		unary(MethodTransferOwnership, ExchangeServer.TransferOwnership),
		unary(MethodApprove, ExchangeServer.Approve),
		unary(MethodMint, ExchangeServer.Mint),
		unary(MethodTransfer, ExchangeServer.Transfer),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simpledex/v1/exchange",
}

// unary builds the handler protoc-gen-go-grpc would generate for one method.
func unary[Req, Resp any](
	name string,
	call func(ExchangeServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
