package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"simpledex/api/grpcserver"
	"simpledex/config"
	"simpledex/infra/kafka"
	"simpledex/infra/logging"
	"simpledex/infra/metrics"
	"simpledex/infra/sequence"
	entrywal "simpledex/infra/wal/entry"
	exitwal "simpledex/infra/wal/exit"
	"simpledex/jobs/broadcaster"
	"simpledex/service"
	"simpledex/snapshot"
)

func main() {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "simpledex-server",
		Short:         "Constant-product exchange served over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	config.RegisterFlags(cmd.Flags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "simpledex-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// ---------------- Logging & Metrics ----------------

	log, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()

	// ---------------- Entry WAL ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             filepath.Join(cfg.DataDir, "wal_entry"),
		SegmentSize:     cfg.WAL.SegmentSize,
		SyncEveryAppend: cfg.WAL.SyncEveryAppend,
	})
	if err != nil {
		return errors.Wrap(err, "entry WAL init failed")
	}
	defer entryWAL.Close()

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(filepath.Join(cfg.DataDir, "wal_exit"))
	if err != nil {
		return errors.Wrap(err, "exit WAL init failed")
	}
	defer exitWAL.Close()

	// ---------------- Service & Recovery ----------------

	svc := service.NewExchangeService(sequence.New(0), entryWAL, exitWAL, log, m)
	snapWriter := &snapshot.Writer{Dir: filepath.Join(cfg.DataDir, "snapshot")}

	if _, err := svc.Recover(snapWriter.Path()); err != nil {
		return errors.Wrap(err, "recovery failed")
	}

	if !svc.Deployed() {
		g, err := genesis(cfg.Genesis)
		if err != nil {
			return err
		}
		if _, err := svc.Deploy(g); err != nil {
			return errors.Wrap(err, "genesis deploy failed")
		}
	}

	// ---------------- Background Jobs ----------------

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	snapDone := svc.StartSnapshotJob(jobCtx, snapWriter, cfg.Snapshot.Interval)

	pub, err := publisher(cfg.Broker, log)
	if err != nil {
		return errors.Wrap(err, "publisher init failed")
	}
	bc := broadcaster.New(exitWAL, pub, cfg.Broker.Interval, log, m)
	bc.Start(jobCtx)

	// ---------------- Metrics HTTP ----------------

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Listen)
	if err != nil {
		return errors.Wrap(err, "listen failed")
	}

	auth := grpcserver.NewAuthenticator(cfg.Auth.JWTSecret)
	if !auth.Enabled() {
		log.Warn("auth.jwt_secret is empty; trusting the x-caller header")
	}
	grpcSrv := grpc.NewServer(grpcserver.ServerOptions(auth, log)...)
	health := grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcSrv.Serve(lis) }()

	pool, _ := svc.Pool()
	log.Info("simpledex running",
		zap.String("grpc", cfg.GRPC.Listen),
		zap.Stringer("exchange", pool.Exchange),
		zap.Stringer("tokenA", pool.TokenA),
		zap.Stringer("tokenB", pool.TokenB))

	// ---------------- Shutdown ----------------

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		log.Error("gRPC server exited", zap.Error(err))
	}

	health.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	cancelJobs()
	if err := bc.Close(shutdownCtx); err != nil {
		log.Warn("publisher close", zap.Error(err))
	}
	<-snapDone

	if seq, err := svc.TakeSnapshot(snapWriter); err != nil {
		log.Warn("final snapshot failed", zap.Error(err))
	} else {
		log.Info("final snapshot written", zap.Uint64("seq", seq))
	}
	return nil
}

func genesis(g config.GenesisConfig) (service.Genesis, error) {
	if !common.IsHexAddress(g.Deployer) {
		return service.Genesis{}, errors.Newf("genesis.deployer must be set to an address on first start, got %q", g.Deployer)
	}
	supply, err := uint256.FromDecimal(g.Supply)
	if err != nil {
		return service.Genesis{}, errors.Wrap(err, "genesis.supply")
	}
	return service.Genesis{
		Deployer: common.HexToAddress(g.Deployer),
		SymbolA:  g.SymbolA,
		SymbolB:  g.SymbolB,
		Supply:   supply,
	}, nil
}

func publisher(cfg config.BrokerConfig, log *zap.Logger) (broadcaster.Publisher, error) {
	switch cfg.Driver {
	case "sarama":
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic, log)
	default:
		return broadcaster.NewLogPublisher(log), nil
	}
}
