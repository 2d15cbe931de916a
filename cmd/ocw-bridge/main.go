package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/ocw-bridge/pkg/config"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/client"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/eventstream"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/keystore"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/price"
	feedertx "github.com/StrathCole/ocw-bridge/pkg/feeder/tx"
	"github.com/StrathCole/ocw-bridge/pkg/feeder/worker"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/logging"
	"github.com/StrathCole/ocw-bridge/pkg/metrics"
	"github.com/StrathCole/ocw-bridge/pkg/oracle"
	"github.com/StrathCole/ocw-bridge/pkg/server/api"
	"github.com/StrathCole/ocw-bridge/pkg/signing"
	"github.com/StrathCole/ocw-bridge/pkg/version"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
	mode       = flag.String("mode", "", "Override run mode: node, worker or both")
	dryRun     = flag.Bool("dry-run", false, "Dry run mode: sign price payloads but don't submit them")
)

// node is the in-process ledger with the price module as its runtime.
type node struct {
	module *oracle.Module
	chain  *ledger.Chain
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("ocw-bridge version %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
	}
	if *dryRun {
		cfg.Worker.DryRun = true
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logging.SetGlobal(logger)

	logger.Info("Starting ocw-bridge", "version", version.Version, "mode", cfg.NormalizeMode())
	if cfg.Worker.DryRun && cfg.IsWorkerMode() {
		logger.Warn("DRY RUN MODE ENABLED - price payloads will be signed but NOT submitted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Component failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metrics.Init()
		srv := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path)
		logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
		serve(ctx, g, srv.ListenAndServe, srv.Shutdown)
	}

	var n *node
	if cfg.IsNodeMode() {
		var err error
		n, err = runNode(ctx, g, cfg, logger)
		if err != nil {
			return err
		}
	}

	if cfg.IsWorkerMode() {
		w, err := newWorker(ctx, cfg, n, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// serve runs an HTTP server in g and shuts it down when ctx ends.
func serve(ctx context.Context, g *errgroup.Group, start func() error, shutdown func(context.Context) error) {
	g.Go(func() error {
		if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx)
	})
}

func runNode(ctx context.Context, g *errgroup.Group, cfg *config.Config, logger *logging.Logger) (*node, error) {
	rt := cfg.Node.Runtime
	module, err := oracle.NewModule(oracle.Params{
		Priority:       rt.Priority,
		Longevity:      rt.Longevity,
		WindowCapacity: rt.WindowCapacity,
		TagPrefix:      rt.TagPrefix,
	}, logger.ZerologLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to create price module: %w", err)
	}

	chain := ledger.NewChain(module, ledger.ChainConfig{
		BlockTime:   cfg.Node.BlockTime.ToDuration(),
		MaxBlockTxs: cfg.Node.MaxBlockTxs,
		MaxPoolSize: cfg.Node.MaxPoolSize,
	}, nil, logger.ZerologLogger())

	logger.Info("Initialized dev ledger",
		"block_time", cfg.Node.BlockTime.ToDuration().String(),
		"priority", rt.Priority,
		"longevity", rt.Longevity,
		"window_capacity", rt.WindowCapacity)

	g.Go(func() error { return chain.Run(ctx) })

	server := api.NewServer(api.Config{
		Addr:            cfg.Server.HTTP.Addr,
		SubmitRateLimit: cfg.Server.SubmitRateLimit,
		SubmitBurst:     cfg.Server.SubmitBurst,
		Scale:           cfg.Worker.Scale,
	}, chain, module, logger)

	if cfg.Server.WebSocket.Enabled {
		ws := api.NewWebSocketServer(cfg.Worker.Scale, logger)
		server.SetWebSocketServer(ws)

		blocks, unsubscribe := chain.Subscribe(64)
		g.Go(func() error {
			defer unsubscribe()
			return ws.Run(ctx, blocks)
		})
	}

	serve(ctx, g, server.Start, server.Stop)

	return &node{module: module, chain: chain}, nil
}

// newWorker wires the worker to the local chain when one runs in this
// process, and to the configured remote nodes otherwise.
func newWorker(ctx context.Context, cfg *config.Config, n *node, logger *logging.Logger) (*worker.Worker, error) {
	wc := cfg.Worker
	zl := logger.ZerologLogger()

	mnemonic, err := wc.Keys.ResolveMnemonic()
	if err != nil {
		return nil, err
	}
	scheme, err := signing.ParseScheme(wc.Keys.Scheme)
	if err != nil {
		return nil, err
	}
	keys, err := keystore.FromMnemonic(mnemonic, wc.Keys.HDPath, scheme, wc.Keys.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing identities: %w", err)
	}
	for _, pub := range keys.Accounts() {
		logger.Info("Loaded signing identity", "scheme", string(pub.Scheme), "address", pub.Address())
	}

	priceClient, err := price.NewHTTPClient(price.ClientConfig{
		Endpoint: wc.Endpoint,
		JSONPath: wc.JSONPath,
		Timeout:  wc.FetchTimeout.ToDuration(),
	}, zl)
	if err != nil {
		return nil, fmt.Errorf("failed to create price client: %w", err)
	}

	var (
		pool   feedertx.Pool
		stream eventstream.EventStream
	)
	if n != nil {
		pool = n.chain
		local := eventstream.NewLocal(n.chain, zl)
		if err := local.Start(ctx); err != nil {
			return nil, err
		}
		stream = local
	} else {
		nodeClient, err := client.NewClient(client.ClientConfig{Endpoints: wc.NodeURLs, Logger: zl})
		if err != nil {
			return nil, fmt.Errorf("failed to create node client: %w", err)
		}
		if status, err := nodeClient.Status(ctx); err != nil {
			logger.Warn("Remote node not reachable yet", "error", err)
		} else {
			logger.Info("Connected to node", "endpoint", nodeClient.CurrentEndpoint(), "version", status.Version, "height", status.Height)
		}
		pool = nodeClient

		remote, err := eventstream.NewStream(wc.NodeURLs, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to create event stream: %w", err)
		}
		if err := remote.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start event stream: %w", err)
		}
		stream = remote
	}

	var lock *worker.Lock
	if wc.Lock.Enabled {
		lock = worker.NewLock(wc.Lock.Timeout.ToDuration(), wc.Lock.Blocks, nil)
	}

	w, err := worker.New(worker.Config{
		PriceClient: priceClient,
		Converter:   price.NewConverter(wc.Scale),
		Submitter: feedertx.NewSubmitter(feedertx.SubmitterConfig{
			Keys:   keys,
			Pool:   pool,
			DryRun: wc.DryRun,
			Logger: zl,
		}),
		Stream:         stream,
		Lock:           lock,
		WindowCapacity: cfg.Node.Runtime.WindowCapacity,
		Logger:         zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	logger.Info("Starting price worker", "endpoint", wc.Endpoint, "identities", keys.Len(), "lock", wc.Lock.Enabled)
	return w, nil
}
