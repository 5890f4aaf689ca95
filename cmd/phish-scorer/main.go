package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/di"
	"github.com/mikey/phish-scorer/internal/ports"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (searches the default locations if empty)")
	flag.Parse()

	// A missing .env file is fine, keys may come from the environment
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the dependency injection container
	container, err := di.BuildContainer(ctx, *configFile)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(func(
		logger *zap.Logger,
		messageFilter ports.MessageFilter,
		advisor core.LLMClient,
		cacheRepo core.CacheRepository,
	) error {
		return run(ctx, logger, messageFilter, advisor, cacheRepo)
	}); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the filter and blocks until a shutdown signal arrives
func run(
	ctx context.Context,
	logger *zap.Logger,
	messageFilter ports.MessageFilter,
	advisor core.LLMClient,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	if err := messageFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	if err := messageFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := advisor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
