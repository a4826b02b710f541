package orchestrator

import (
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ServiceManager manages the lifecycle of the indexer and API services
type ServiceManager struct {
	indexerCmd *exec.Cmd
	apiCmd     *exec.Cmd
}

// NewServiceManager creates a new service manager
func NewServiceManager() *ServiceManager {
	return &ServiceManager{}
}

// StartIndexerService starts the index build service
func (sm *ServiceManager) StartIndexerService(ctx context.Context, binExt string) error {
	log.Info().Msg("Starting indexer service...")

	sm.indexerCmd = exec.CommandContext(ctx, "./indexer"+binExt)
	sm.indexerCmd.Stdout = log.Logger
	sm.indexerCmd.Stderr = log.Logger

	if err := sm.indexerCmd.Start(); err != nil {
		return err
	}

	// Give the indexer a head start so the API finds a fresh index
	time.Sleep(2 * time.Second)
	return nil
}

// StartAPIService starts the API service
func (sm *ServiceManager) StartAPIService(ctx context.Context, binExt string) error {
	log.Info().Msg("Starting API service...")

	sm.apiCmd = exec.CommandContext(ctx, "./api"+binExt)
	sm.apiCmd.Stdout = log.Logger
	sm.apiCmd.Stderr = log.Logger

	if err := sm.apiCmd.Start(); err != nil {
		return err
	}

	return nil
}

// WaitForServices waits for both services to complete or context to be cancelled
func (sm *ServiceManager) WaitForServices(ctx context.Context) {
	log.Info().Msg("Both services started, waiting for completion...")

	indexerDone := make(chan error, 1)
	go func() {
		indexerDone <- sm.indexerCmd.Wait()
	}()

	apiDone := make(chan error, 1)
	go func() {
		apiDone <- sm.apiCmd.Wait()
	}()

	// The indexer is a batch job; its exit is normal. The API exiting or a
	// cancelled context ends the orchestrator.
	for {
		select {
		case err := <-indexerDone:
			if err != nil {
				log.Error().Err(err).Msg("Indexer service exited with error")
			} else {
				log.Info().Msg("Indexer service completed successfully")
			}
			indexerDone = nil
		case err := <-apiDone:
			if err != nil {
				log.Error().Err(err).Msg("API service exited with error")
			} else {
				log.Info().Msg("API service exited")
			}
			return
		case <-ctx.Done():
			log.Info().Msg("Shutting down services...")
			sm.shutdownServices()
			return
		}
	}
}

// shutdownServices gracefully shuts down all services
func (sm *ServiceManager) shutdownServices() {
	if sm.indexerCmd.Process != nil {
		sm.indexerCmd.Process.Signal(syscall.SIGTERM)
	}

	if sm.apiCmd.Process != nil {
		sm.apiCmd.Process.Signal(syscall.SIGTERM)
	}

	// Wait for graceful shutdown
	time.Sleep(5 * time.Second)

	// Force kill if still running
	if sm.indexerCmd.Process != nil {
		sm.indexerCmd.Process.Kill()
	}
	if sm.apiCmd.Process != nil {
		sm.apiCmd.Process.Kill()
	}
}
