package dexrpc

// -------------------- Queries --------------------

type PoolRequest struct{}

type PoolResponse struct {
	Exchange string `json:"exchange"`
	TokenA   string `json:"tokenA"`
	TokenB   string `json:"tokenB"`
	SymbolA  string `json:"symbolA"`
	SymbolB  string `json:"symbolB"`
	Owner    string `json:"owner"`
	ReserveA string `json:"reserveA"`
	ReserveB string `json:"reserveB"`
	Seq      uint64 `json:"seq"`
}

type PriceRequest struct {
	Asset string `json:"asset"`
}

// PriceResponse carries the price scaled by 10^18.
type PriceResponse struct {
	Price string `json:"price"`
}

type QuoteRequest struct {
	AssetIn  string `json:"assetIn"`
	AmountIn string `json:"amountIn"`
}

type QuoteResponse struct {
	AmountOut string `json:"amountOut"`
}

type BalanceRequest struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
}

type AllowanceRequest struct {
	Asset   string `json:"asset"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

// -------------------- Commands --------------------

// The caller of every command is taken from the call metadata, never from
// the message.

type LiquidityRequest struct {
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

type SwapRequest struct {
	AmountIn string `json:"amountIn"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"newOwner"`
}

type ApproveRequest struct {
	Asset   string `json:"asset"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type MintRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TransferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// TxResponse reports the journal sequence of a committed command. AmountOut
// is set for swaps only.
type TxResponse struct {
	Seq       uint64 `json:"seq"`
	AmountOut string `json:"amountOut,omitempty"`
}
