package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/factory"
	"github.com/mikey/phish-scorer/internal/logging"
	"github.com/mikey/phish-scorer/internal/ports"
	"github.com/mikey/phish-scorer/internal/utils"
)

// BuildContainer creates and configures the dependency injection container for
// the daemon. An empty configFile searches the default locations.
func BuildContainer(ctx context.Context, configFile string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideFactories(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register mailbox source
	if err := container.Provide(func(ctx context.Context, f *factory.SourceFactory) (core.MessageSource, error) {
		return f.CreateMessageSource(ctx)
	}); err != nil {
		return nil, err
	}

	// Register phishing service
	if err := container.Provide(func(
		f *factory.ServiceFactory,
		checkers []core.ReputationChecker,
		advisor core.LLMClient,
		cacheRepo core.CacheRepository,
		lookups core.LookupOptions,
	) (*core.PhishingService, error) {
		return f.CreateService(checkers, advisor, cacheRepo, lookups)
	}); err != nil {
		return nil, err
	}

	if err := provideFilter(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideFactories registers the factories and the collaborators shared by
// both containers
func provideFactories(container *dig.Container) error {
	constructors := []interface{}{
		factory.NewTextProcessorFactory,
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewReputationFactory,
		factory.NewServiceFactory,
		factory.NewSourceFactory,
		factory.NewFilterFactory,
	}
	for _, c := range constructors {
		if err := container.Provide(c); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register LLM advisor
	if err := container.Provide(func(ctx context.Context, f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient(ctx)
	}); err != nil {
		return err
	}

	// Register reputation checkers and their limits
	if err := container.Provide(func(f *factory.ReputationFactory) ([]core.ReputationChecker, error) {
		return f.CreateCheckers()
	}); err != nil {
		return err
	}
	return container.Provide(func(f *factory.ReputationFactory) (core.LookupOptions, error) {
		return f.LookupOptions()
	})
}

func provideFilter(container *dig.Container) error {
	return container.Provide(func(f *factory.FilterFactory, source core.MessageSource, logger *zap.Logger) (ports.MessageFilter, error) {
		filter, err := f.CreateMessageFilter(source)
		if err != nil {
			return nil, err
		}
		logger.Debug("Message filter created")
		return filter, nil
	})
}
