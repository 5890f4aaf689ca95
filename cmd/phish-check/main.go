package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/di"
	"github.com/mikey/phish-scorer/internal/ports"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
)

func main() {
	// Loaded first so the flag defaults can read API keys from it
	_ = godotenv.Load()

	flags := di.ParseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.BuildCLIContainer(ctx, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(
		logger *zap.Logger,
		messageFilter ports.MessageFilter,
		source core.MessageSource,
		textProcessor *utils.TextProcessor,
		advisor core.LLMClient,
	) error {
		defer logger.Sync()
		defer closeAdvisor(logger, advisor)

		if source != nil {
			return checkMailbox(ctx, logger, messageFilter, source)
		}
		return checkFile(ctx, logger, messageFilter, textProcessor, flags.InputFile)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// checkFile analyzes one raw message read from path, or stdin when path is empty
func checkFile(ctx context.Context, logger *zap.Logger, messageFilter ports.MessageFilter, tp *utils.TextProcessor, path string) error {
	var reader io.Reader = os.Stdin
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Debug("Reading email from file", zap.String("file", path))
	} else {
		logger.Debug("Reading email from stdin")
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	msg, err := filter.ParseMessage(raw, tp)
	if err != nil {
		return err
	}

	_, err = messageFilter.ProcessMessage(ctx, msg)
	return err
}

// checkMailbox analyzes the latest messages of the configured mailbox
func checkMailbox(ctx context.Context, logger *zap.Logger, messageFilter ports.MessageFilter, source core.MessageSource) error {
	msgs, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Fetched messages", zap.Int("count", len(msgs)))

	for _, msg := range msgs {
		if _, err := messageFilter.ProcessMessage(ctx, msg); err != nil {
			logger.Error("Failed to analyze message", zap.String("id", msg.ID), zap.Error(err))
		}
	}
	return nil
}

func closeAdvisor(logger *zap.Logger, advisor core.LLMClient) {
	if closer, ok := advisor.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
}
