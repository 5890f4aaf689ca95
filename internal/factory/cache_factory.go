package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phish-scorer/internal/adapters/cache"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository creates a cache repository based on the configuration.
// It returns nil without error when caching is disabled.
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	cacheConfig, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	if !cacheConfig.Enabled {
		return nil, nil
	}

	switch cacheConfig.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheConfig.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheConfig.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		c, err := cache.NewSQLiteCache(cacheConfig.SQLitePath, f.logger, cacheConfig.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mysql":
		c, err := cache.NewMySQLCache(cacheConfig.MySQLDSN, f.logger, cacheConfig.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheConfig.Type)
	}
}
