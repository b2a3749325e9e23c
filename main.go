// Copyright 2025 Intmax2 Validity Prover
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intmax2-labs/validity-prover/pkg/backup"
	"github.com/intmax2-labs/validity-prover/pkg/chain"
	"github.com/intmax2-labs/validity-prover/pkg/config"
	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/forest"
	"github.com/intmax2-labs/validity-prover/pkg/l1observer"
	"github.com/intmax2-labs/validity-prover/pkg/l2observer"
	"github.com/intmax2-labs/validity-prover/pkg/prover"
	"github.com/intmax2-labs/validity-prover/pkg/reconstructor"
	"github.com/intmax2-labs/validity-prover/pkg/server"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Starting Intmax2 Validity Prover")

	var (
		topologyPath = flag.String("config", "", "path to a topology YAML file (overlays env-derived config)")
		migrateOnly  = flag.Bool("migrate-only", false, "run database migrations then exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *topologyPath != "" {
		topo, err := config.LoadTopology(*topologyPath)
		if err != nil {
			log.Fatalf("failed to load topology %s: %v", *topologyPath, err)
		}
		cfg.ApplyTopology(topo)
		log.Printf("applied topology overlay from %s (environment=%s)", *topologyPath, topo.Environment)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	dbClient, err := database.NewClient(cfg, database.WithLogger(
		log.New(log.Writer(), "[Database] ", log.LstdFlags),
	))
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := dbClient.MigrateUp(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("database migration failed: %v", err)
	}
	migrateCancel()

	if *migrateOnly {
		log.Printf("migrate-only: migrations applied, exiting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l1Client, err := chain.NewClient(ctx, cfg.L1RPCURL, cfg.L1ChainID)
	if err != nil {
		log.Fatalf("failed to connect to L1 RPC: %v", err)
	}
	defer l1Client.Close()

	l2Client, err := chain.NewClient(ctx, cfg.L2RPCURL, cfg.L2ChainID)
	if err != nil {
		log.Fatalf("failed to connect to L2 RPC: %v", err)
	}
	defer l2Client.Close()

	store := database.NewMerkleStore(dbClient)
	merkleForest := forest.New(store)

	l1Obs, err := l1observer.NewObserver(l1observer.Config{
		ContractAddress:     common.HexToAddress(cfg.LiquidityContractAddress),
		SafetyConfirmations: cfg.L1SafetyConfirmations,
		PollInterval:        cfg.L1PollInterval,
		MaxBlocksPerScan:    cfg.MaxBlocksPerScan,
	}, l1Client, dbClient, log.New(log.Writer(), "[L1Observer] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("failed to construct L1 observer: %v", err)
	}

	l2Obs, err := l2observer.NewObserver(l2observer.Config{
		ContractAddress:     common.HexToAddress(cfg.RollupContractAddress),
		SafetyConfirmations: cfg.L2SafetyConfirmations,
		PollInterval:        cfg.L2PollInterval,
		MaxBlocksPerScan:    cfg.MaxBlocksPerScan,
	}, l2Client, dbClient, log.New(log.Writer(), "[L2Observer] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("failed to construct L2 observer: %v", err)
	}

	recon := reconstructor.New(dbClient, merkleForest, cfg.ReconstructorInterval,
		log.New(log.Writer(), "[Reconstructor] ", log.LstdFlags))

	sweeper := prover.NewSweeper(dbClient, cfg.ProverLeaseTTL, cfg.LeaseSweepInterval,
		log.New(log.Writer(), "[LeaseSweeper] ", log.LstdFlags))

	aggregator := prover.NewHTTPAggregator(cfg.AggregatorEndpoint)
	chainer := prover.NewChainer(dbClient, aggregator, cfg.ChainingInterval,
		log.New(log.Writer(), "[Chainer] ", log.LstdFlags))

	backupJob := backup.New(dbClient, backup.Config{
		Offset:   uint64(cfg.BackupOffset),
		Interval: cfg.BackupInterval,
	}, log.New(log.Writer(), "[Backup] ", log.LstdFlags))

	httpServer := server.New(cfg.ListenAddr, dbClient, cfg.ProverLeaseTTL,
		log.New(log.Writer(), "[Server] ", log.LstdFlags))

	loops := []struct {
		name string
		run  func(context.Context) error
	}{
		{"l1-observer", l1Obs.Run},
		{"l2-observer", l2Obs.Run},
		{"reconstructor", recon.Run},
		{"lease-sweeper", sweeper.Run},
		{"chainer", chainer.Run},
		{"backup", backupJob.Run},
	}

	for _, loop := range loops {
		loop := loop
		go func() {
			if err := loop.run(ctx); err != nil && err != context.Canceled {
				log.Printf("[%s] stopped: %v", loop.name, err)
			}
		}()
	}

	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("Validity Prover stopped")
}
