package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/config"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/pkg/logging"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.SetServiceName("ncpcore-indexer")
	logging.Setup(cfg.ElasticURL)

	log.Info().
		Str("store_root", cfg.StoreRoot).
		Str("index_path", cfg.IndexPath).
		Int("workers", cfg.ScanWorkers).
		Msg("Starting ncpcore-indexer service")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	force := os.Getenv("FORCE_REBUILD") == "true"

	svc := index.NewService(cfg.StoreRoot, cfg.IndexPath, cfg.ScanWorkers)
	idx, err := svc.Build(ctx, force)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build document index")
	}

	documents := 0
	for _, descriptors := range idx {
		documents += len(descriptors)
	}

	log.Info().
		Int("patients", len(idx)).
		Int("documents", documents).
		Msg("Document index build completed successfully")
}
