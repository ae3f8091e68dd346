// Package main provides the bridgesyncd daemon - the bridge swap
// status reconciliation service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/klingon-exchange/bridgesync/internal/backend"
	"github.com/klingon-exchange/bridgesync/internal/config"
	"github.com/klingon-exchange/bridgesync/internal/heights"
	"github.com/klingon-exchange/bridgesync/internal/reconcile"
	"github.com/klingon-exchange/bridgesync/internal/registry"
	"github.com/klingon-exchange/bridgesync/internal/rpc"
	"github.com/klingon-exchange/bridgesync/internal/storage"
	"github.com/klingon-exchange/bridgesync/internal/upstream"
	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", "~/.bridgesync", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		apiAddr     = flag.String("api", "", "JSON-RPC API address, overrides config")
		testnet     = flag.Bool("testnet", false, "Run on testnet (separate network and data)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, may be overridden by config)
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("bridgesyncd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Determine data directory (testnet uses subdirectory)
	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	// Load or create config file
	var cfg *config.Config
	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfig(filepath.Dir(*configFile))
	} else {
		cfg, err = config.LoadConfig(effectiveDataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Apply CLI overrides (CLI flags take precedence over config file)
	if *apiAddr != "" {
		cfg.API.Addr = *apiAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	cfg.Storage.DataDir = effectiveDataDir
	if *testnet {
		cfg.NetworkType = config.NetworkTestnet
	}

	// Update logging with config level
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", config.ConfigPath(effectiveDataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", cfg.Storage.DataDir)

	// Initialize bitcoin indexer
	btcBackend, err := backend.New(cfg.BitcoinConfig(), cfg.BitcoinURL())
	if err != nil {
		log.Fatal("Failed to create bitcoin backend", "error", err)
	}
	if err := btcBackend.Connect(ctx); err != nil {
		log.Warn("Bitcoin indexer unreachable at startup", "error", err)
	}
	defer btcBackend.Close()
	log.Info("Bitcoin indexer initialized", "type", btcBackend.Type(), "url", cfg.BitcoinURL())

	// Initialize EVM registry clients for configured chains
	clients := make(map[uint64]registry.ChainClient)
	for _, chain := range cfg.Chains {
		if chain.RegistryContract == "" {
			log.Debug("Skipping chain without registry contract", "chain", chain.Name)
			continue
		}
		if !common.IsHexAddress(chain.RegistryContract) {
			log.Warn("Invalid registry contract address, skipping chain",
				"chain", chain.Name, "contract", chain.RegistryContract)
			continue
		}

		client, err := registry.NewClient(chain.RPCURL, common.HexToAddress(chain.RegistryContract), chain.ChainID)
		if err != nil {
			log.Warn("Failed to connect EVM chain, skipping",
				"chain", chain.Name, "error", err)
			continue
		}
		clients[chain.ChainID] = client
		log.Info("EVM registry connected", "chain", chain.Name, "chain_id", chain.ChainID)
	}

	registrySvc := registry.NewService(clients, log)
	defer registrySvc.Close()

	heightSvc := heights.NewService(btcBackend, registrySvc, heights.DefaultTTL, log)

	// Upstream swap-status service
	upstreamClient := upstream.NewClient(cfg.Upstream.URL)
	log.Info("Upstream client initialized", "url", cfg.Upstream.URL)

	// Reconciliation pipeline
	network := &chaincfg.MainNetParams
	if cfg.IsTestnet() {
		network = &chaincfg.TestNet3Params
	}

	fixerChain := reconcile.NewDefaultChain(reconcile.Deps{
		Bitcoin: btcBackend,
		Lockups: registrySvc,
		Network: network,
		Log:     log,
	})

	hub := rpc.NewWSHub()
	syncer := reconcile.NewSyncer(store, store, upstreamClient, fixerChain, hub, log)
	calculator := reconcile.NewCalculator(registrySvc, store, heightSvc, log)

	// Start RPC server
	rpcServer := rpc.NewServer(store, syncer, calculator, string(cfg.NetworkType), hub)
	if err := rpcServer.Start(cfg.API.Addr); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	// Background resync over users with open swaps
	if cfg.Resync.Enabled {
		go runResync(ctx, cfg.Resync.Interval, store, syncer, log)
		log.Info("Background resync enabled", "interval", cfg.Resync.Interval)
	}

	printBanner(log, cfg)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()

	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}

	log.Info("Goodbye!")
}

// runResync periodically reconciles every user that still has open
// swaps. A failed user is logged and retried on the next tick.
func runResync(ctx context.Context, interval time.Duration, store *storage.Storage, syncer *reconcile.Syncer, log *logging.Logger) {
	resyncLog := log.Component("resync")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			users, err := store.UsersWithOpenSwaps()
			if err != nil {
				resyncLog.Error("Failed to list users", "error", err)
				continue
			}
			for _, userID := range users {
				if _, err := syncer.Sync(ctx, userID); err != nil {
					resyncLog.Warn("Resync failed", "user", userID, "error", err)
				}
			}
			if len(users) > 0 {
				resyncLog.Debug("Resync pass complete", "users", len(users))
			}
		}
	}
}

func printBanner(log *logging.Logger, cfg *config.Config) {
	networkLabel := "mainnet"
	if cfg.IsTestnet() {
		networkLabel = "TESTNET"
	}

	log.Info("")
	log.Info("=================================================")
	log.Infof("  Bridge Sync Daemon (%s)", networkLabel)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s", cfg.API.Addr)
	log.Infof("  WS:  ws://%s/ws", cfg.API.Addr)
	log.Info("")
	log.Infof("  Network: %s | EVM chains: %d", networkLabel, len(cfg.Chains))
	log.Infof("  Data dir: %s", cfg.Storage.DataDir)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
