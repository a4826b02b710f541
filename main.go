package main

import (
	"context"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/config"
	"crossmed.eu/ncpcore/internal/orchestrator"
	"crossmed.eu/ncpcore/pkg/logging"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.SetServiceName("ncpcore-orch")
	logging.Setup(cfg.ElasticURL)

	log.Info().Msg("Starting ncpcore orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator.NewSignalHandler().HandleSignals(ctx, cancel)

	binExt := ""
	if runtime.GOOS == "windows" {
		binExt = ".exe"
	}

	sm := orchestrator.NewServiceManager()

	if err := sm.StartIndexerService(ctx, binExt); err != nil {
		log.Fatal().Err(err).Msg("Failed to start indexer service")
	}

	if err := sm.StartAPIService(ctx, binExt); err != nil {
		log.Fatal().Err(err).Msg("Failed to start API service")
	}

	sm.WaitForServices(ctx)

	log.Info().Msg("Orchestrator shutdown complete")
	os.Exit(0)
}
