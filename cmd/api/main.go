package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/api"
	"crossmed.eu/ncpcore/internal/config"
	"crossmed.eu/ncpcore/internal/fhir"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/internal/match"
	"crossmed.eu/ncpcore/internal/metrics"
	"crossmed.eu/ncpcore/internal/orchestrator"
	"crossmed.eu/ncpcore/pkg/logging"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.SetServiceName("ncpcore-api")
	logging.Setup(cfg.ElasticURL)

	log.Info().Msg("Starting ncpcore-api service")

	// Start system metrics collection
	metrics.GetInstance().InitializeMetrics()
	metrics.StartSystemMetrics(15 * time.Second)

	idx := index.NewService(cfg.StoreRoot, cfg.IndexPath, cfg.ScanWorkers)

	// Load the persisted index, building it on first start
	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if _, err := idx.Build(startupCtx, false); err != nil {
		log.Warn().Err(err).Msg("Index unavailable at startup, serving remote-only until refresh")
	}
	cancel()

	var fhirClient *fhir.Client
	if cfg.UseRemoteFHIR {
		fhirClient = fhir.NewClient(cfg.FHIRBaseURL, cfg.FHIRTimeout, cfg.FHIRRetries)
	}
	resolver := match.NewResolver(idx, fhirClient)

	// Setup routes
	router := api.NewServer(cfg, idx, resolver).SetupRoutes()

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	sh := orchestrator.NewSignalHandler()

	// Start server in goroutine
	go func() {
		log.Info().
			Str("port", cfg.APIPort).
			Msg("API server starting")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().
				Err(err).
				Msg("Failed to start API server")
		}
	}()

	sh.DrainOnSignal(server, 30*time.Second)

	log.Info().Msg("API service shutdown complete")
}
