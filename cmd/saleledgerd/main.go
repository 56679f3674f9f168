package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"saleledger/config"
	"saleledger/core"
	"saleledger/core/events"
	"saleledger/core/genesis"
	"saleledger/observability/logging"
	"saleledger/observability/metrics"
	"saleledger/rpc"
	"saleledger/services/saleindex"
	"saleledger/storage"
)

var genesisMarkerKey = []byte("saleledger/genesis-applied")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis allocation YAML file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SALE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logOpts := []logging.Option{}
	if strings.TrimSpace(cfg.LogFile) != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.LogFile))
	}
	logger := logging.Setup("saleledgerd", env, logOpts...)

	taxRecipient, err := cfg.TaxRecipientAddress()
	if err != nil {
		logger.Error("invalid tax recipient", "err", err)
		os.Exit(1)
	}
	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("invalid admin address", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open state database", "err", err)
		os.Exit(1)
	}

	emitters := events.Multi{metrics.Directsell()}
	var indexer *saleindex.Indexer
	if strings.TrimSpace(cfg.IndexFile) != "" {
		indexer, err = saleindex.Open(cfg.IndexFile, logger)
		if err != nil {
			logger.Error("failed to open sale index", "err", err)
			os.Exit(1)
		}
		emitters = append(emitters, indexer)
	}

	node := core.NewNode(db,
		core.WithTaxRecipient(taxRecipient.Raw()),
		core.WithAdmin(admin.Raw()),
		core.WithTaxBps(cfg.TaxBps),
		core.WithEmitter(emitters),
	)
	defer node.Close()

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		applied, err := db.Has(genesisMarkerKey)
		if err != nil {
			logger.Error("failed to read genesis marker", "err", err)
			os.Exit(1)
		}
		if applied {
			logger.Info("genesis already applied, skipping", "path", genesisPath)
		} else {
			spec, err := genesis.LoadFile(genesisPath)
			if err != nil {
				logger.Error("failed to load genesis", "path", genesisPath, "err", err)
				os.Exit(1)
			}
			if err := genesis.Apply(node, spec); err != nil {
				logger.Error("failed to apply genesis", "err", err)
				os.Exit(1)
			}
			if err := db.Put(genesisMarkerKey, []byte{1}); err != nil {
				logger.Error("failed to persist genesis marker", "err", err)
				os.Exit(1)
			}
			logger.Info("applied genesis allocations", "path", genesisPath)
		}
	}

	logger.Info("node ready",
		"network", cfg.NetworkName,
		"taxRecipient", cfg.TaxRecipient,
		"taxBps", cfg.TaxBps,
	)
	server := rpc.NewServer(node, logger)
	server.SetRateLimit(cfg.RPCRatePerMinute, cfg.RPCRateBurst)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}
