package main

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"simpledex/api/dexrpc"
	"simpledex/api/grpcserver"
)

// call dials, runs fn with a timeout and prints its result.
func (g *globals) call(cmd *cobra.Command, fn func(context.Context, *dexrpc.Client) (any, error)) error {
	c, err := g.dial()
	if err != nil {
		return err
	}
	ctx, cancel := g.ctx()
	defer cancel()

	out, err := fn(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

// -------------------- Queries --------------------

func queryCommands(g *globals) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "pool",
			Short: "Show tokens, reserves and owner",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					return c.Pool(ctx)
				})
			},
		},
		{
			Use:   "price <asset>",
			Short: "Spot price of asset in the other asset, scaled by 1e18",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					return c.Price(ctx, &dexrpc.PriceRequest{Asset: asset})
				})
			},
		},
		{
			Use:   "quote <assetIn> <amountIn>",
			Short: "Output a swap would produce right now",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					return c.Quote(ctx, &dexrpc.QuoteRequest{AssetIn: asset, AmountIn: args[1]})
				})
			},
		},
		{
			Use:   "balance <asset> <holder>",
			Short: "Ledger balance of holder",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					holder, err := g.resolveTarget(ctx, c, args[1])
					if err != nil {
						return nil, err
					}
					return c.Balance(ctx, &dexrpc.BalanceRequest{Asset: asset, Holder: holder})
				})
			},
		},
		{
			Use:   "allowance <asset> <owner> <spender>",
			Short: "Remaining allowance of spender over owner's funds",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					spender, err := g.resolveTarget(ctx, c, args[2])
					if err != nil {
						return nil, err
					}
					return c.Allowance(ctx, &dexrpc.AllowanceRequest{Asset: asset, Owner: args[1], Spender: spender})
				})
			},
		},
	}
}

// -------------------- Commands --------------------

func txCommands(g *globals) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "add <amountA> <amountB>",
			Short: "Add liquidity (owner only)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					return c.AddLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: args[0], AmountB: args[1]})
				})
			},
		},
		{
			Use:   "remove <amountA> <amountB>",
			Short: "Remove liquidity (owner only)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					return c.RemoveLiquidity(ctx, &dexrpc.LiquidityRequest{AmountA: args[0], AmountB: args[1]})
				})
			},
		},
		{
			Use:       "swap <a-for-b|b-for-a> <amountIn>",
			Short:     "Swap one asset for the other",
			Args:      cobra.ExactArgs(2),
			ValidArgs: []string{"a-for-b", "b-for-a"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					req := &dexrpc.SwapRequest{AmountIn: args[1]}
					switch strings.ToLower(args[0]) {
					case "a-for-b":
						return c.SwapAForB(ctx, req)
					case "b-for-a":
						return c.SwapBForA(ctx, req)
					default:
						return nil, errors.Newf("direction must be a-for-b or b-for-a, got %q", args[0])
					}
				})
			},
		},
		{
			Use:   "approve <asset> <spender|exchange> <amount>",
			Short: "Set the allowance of spender over the caller's funds",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					spender, err := g.resolveTarget(ctx, c, args[1])
					if err != nil {
						return nil, err
					}
					return c.Approve(ctx, &dexrpc.ApproveRequest{Asset: asset, Spender: spender, Amount: args[2]})
				})
			},
		},
		{
			Use:   "mint <asset> <to> <amount>",
			Short: "Mint new units (token minter only)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					return c.Mint(ctx, &dexrpc.MintRequest{Asset: asset, To: args[1], Amount: args[2]})
				})
			},
		},
		{
			Use:   "transfer <asset> <to> <amount>",
			Short: "Transfer units from the caller",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					asset, err := g.resolveAsset(ctx, c, args[0])
					if err != nil {
						return nil, err
					}
					return c.Transfer(ctx, &dexrpc.TransferRequest{Asset: asset, To: args[1], Amount: args[2]})
				})
			},
		},
		{
			Use:   "transfer-owner <newOwner>",
			Short: "Hand over exchange ownership (owner only)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.call(cmd, func(ctx context.Context, c *dexrpc.Client) (any, error) {
					return c.TransferOwnership(ctx, &dexrpc.TransferOwnershipRequest{NewOwner: args[0]})
				})
			},
		},
	}
}

// -------------------- Offline --------------------

func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Issue a development JWT for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			if !common.IsHexAddress(args[0]) {
				return errors.Newf("%q is not an address", args[0])
			}
			tok, err := grpcserver.IssueToken(secret, common.HexToAddress(args[0]), ttl)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret shared with the server (auth.jwt_secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 for none")
	return cmd
}
