package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, ":50051", cfg.GRPC.Listen)
	require.Equal(t, int64(2*1024*1024), cfg.WAL.SegmentSize)
	require.Equal(t, 2*time.Second, cfg.Broker.Interval)
	require.Equal(t, "log", cfg.Broker.Driver)
	require.Equal(t, "TKA", cfg.Genesis.SymbolA)
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simpledex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/simpledex
grpc:
  listen: ":6000"
broker:
  driver: sarama
  brokers: ["k1:9092", "k2:9092"]
  interval: 500ms
snapshot:
  interval: 1m
`), 0o644))

	t.Setenv("SIMPLEDEX_GRPC_LISTEN", ":7000")
	t.Setenv("SIMPLEDEX_AUTH_JWT_SECRET", "s3cret")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log.level=debug"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/simpledex", cfg.DataDir)
	require.Equal(t, ":7000", cfg.GRPC.Listen)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Brokers)
	require.Equal(t, 500*time.Millisecond, cfg.Broker.Interval)
	require.Equal(t, time.Minute, cfg.Snapshot.Interval)
	require.Equal(t, "debug", cfg.Log.Level)
	// unset flags do not clobber lower layers
	require.Equal(t, "sarama", cfg.Broker.Driver)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  driver: carrier-pigeon\n"), 0o644))
	_, err := Load(path, nil)
	require.ErrorContains(t, err, "unknown broker.driver")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
