// Package config loads the server configuration from defaults, an optional
// YAML file, SIMPLEDEX_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SIMPLEDEX"

type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Auth     AuthConfig     `mapstructure:"auth"`
	WAL      WALConfig      `mapstructure:"wal"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Log      LogConfig      `mapstructure:"log"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`
}

type GRPCConfig struct {
	Listen string `mapstructure:"listen"`
}

// MetricsConfig: an empty Listen disables the HTTP endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type WALConfig struct {
	SegmentSize     int64 `mapstructure:"segment_size"`
	SyncEveryAppend bool  `mapstructure:"sync_every_append"`
}

type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type BrokerConfig struct {
	Driver   string        `mapstructure:"driver"` // log, sarama or kafka-go
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// GenesisConfig is applied once, on a data directory that holds no
// deployment yet.
type GenesisConfig struct {
	Deployer string `mapstructure:"deployer"`
	SymbolA  string `mapstructure:"symbol_a"`
	SymbolB  string `mapstructure:"symbol_b"`
	Supply   string `mapstructure:"supply"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("grpc.listen", ":50051")
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("wal.segment_size", 2*1024*1024)
	v.SetDefault("wal.sync_every_append", false)
	v.SetDefault("snapshot.interval", 30*time.Second)
	v.SetDefault("broker.driver", "log")
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.topic", "simpledex.events")
	v.SetDefault("broker.interval", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("genesis.deployer", "")
	v.SetDefault("genesis.symbol_a", "TKA")
	v.SetDefault("genesis.symbol_b", "TKB")
	v.SetDefault("genesis.supply", "1000000000000000000000000") // 1,000,000 * 10^18
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data_dir", "", "directory holding journal, outbox and snapshots")
	fs.String("grpc.listen", "", "gRPC listen address")
	fs.String("metrics.listen", "", "prometheus listen address (empty disables)")
	fs.String("broker.driver", "", "event publisher: log, sarama or kafka-go")
	fs.StringSlice("broker.brokers", nil, "kafka bootstrap brokers")
	fs.String("log.level", "", "debug, info, warn or error")
	fs.String("genesis.deployer", "", "deployer address for the first start")
}

// Load reads the configuration. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}

	if fs != nil {
		// only flags given on the command line override lower layers
		var bindErr error
		fs.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.GRPC.Listen == "" {
		return errors.New("config: grpc.listen is required")
	}
	switch c.Broker.Driver {
	case "log":
	case "sarama", "kafka-go":
		if len(c.Broker.Brokers) == 0 {
			return errors.Newf("config: broker.driver %s needs broker.brokers", c.Broker.Driver)
		}
	default:
		return errors.Newf("config: unknown broker.driver %q", c.Broker.Driver)
	}
	if c.Snapshot.Interval <= 0 || c.Broker.Interval <= 0 {
		return errors.New("config: snapshot.interval and broker.interval must be positive")
	}
	return nil
}
