// Command dexctl is a command-line client for the simpledex gRPC API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"simpledex/api/dexrpc"
)

type globals struct {
	addr    string
	caller  string
	token   string
	timeout time.Duration

	conn   *grpc.ClientConn
	client *dexrpc.Client
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dexctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "dexctl",
		Short:         "Talk to a simpledex server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.conn != nil {
				_ = g.conn.Close()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.addr, "addr", "localhost:50051", "server address")
	pf.StringVar(&g.caller, "caller", os.Getenv("SIMPLEDEX_CALLER"), "caller address (servers without JWT auth)")
	pf.StringVar(&g.token, "token", os.Getenv("SIMPLEDEX_TOKEN"), "bearer token")
	pf.DurationVar(&g.timeout, "timeout", 10*time.Second, "per-call timeout")

	root.AddCommand(
		queryCommands(g)...,
	)
	root.AddCommand(
		txCommands(g)...,
	)
	root.AddCommand(tokenCmd())
	return root
}

func (g *globals) dial() (*dexrpc.Client, error) {
	if g.client != nil {
		return g.client, nil
	}
	conn, err := grpc.NewClient(g.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", g.addr)
	}

	var opts []dexrpc.ClientOption
	if g.token != "" {
		opts = append(opts, dexrpc.WithBearerToken(g.token))
	}
	if g.caller != "" {
		if !common.IsHexAddress(g.caller) {
			return nil, errors.Newf("--caller %q is not an address", g.caller)
		}
		opts = append(opts, dexrpc.WithCaller(common.HexToAddress(g.caller)))
	}
	g.conn = conn
	g.client = dexrpc.NewClient(conn, opts...)
	return g.client, nil
}

func (g *globals) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.timeout)
}

// resolveAsset accepts an address or the aliases A and B.
func (g *globals) resolveAsset(ctx context.Context, c *dexrpc.Client, v string) (string, error) {
	switch strings.ToUpper(v) {
	case "A", "B":
		pool, err := c.Pool(ctx)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(v, "A") {
			return pool.TokenA, nil
		}
		return pool.TokenB, nil
	}
	return v, nil
}

// resolveTarget accepts an address or the alias "exchange".
func (g *globals) resolveTarget(ctx context.Context, c *dexrpc.Client, v string) (string, error) {
	if !strings.EqualFold(v, "exchange") {
		return v, nil
	}
	pool, err := c.Pool(ctx)
	if err != nil {
		return "", err
	}
	return pool.Exchange, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
