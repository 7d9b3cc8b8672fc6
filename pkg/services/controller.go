package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kerbaras/comicdl/pkg/config"
	"github.com/kerbaras/comicdl/pkg/data"
	"github.com/kerbaras/comicdl/pkg/fetch"
	"github.com/kerbaras/comicdl/pkg/integrations"
)

// OpenManager builds a manager from configuration and opens it.
func OpenManager(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Manager, error) {
	backend, err := data.NewBackend(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	fetchOpts := fetch.Options{
		CacheDir:  cfg.Fetch.CacheDir,
		CacheSize: cfg.Fetch.CacheSize,
		CacheTTL:  cfg.CacheTTL(),
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Fetch.UserAgent,
		Logger:    logger,
	}
	if cfg.Normalize.Enabled {
		fetchOpts.Transformer = integrations.NewNormalizer(integrations.NormalizeSettings{
			MaxWidth:  cfg.Normalize.MaxWidth,
			MaxHeight: cfg.Normalize.MaxHeight,
			Quality:   cfg.Normalize.Quality,
			Grayscale: cfg.Normalize.Grayscale,
		})
	}
	fetcher, err := fetch.NewHTTPFetcher(fetchOpts)
	if err != nil {
		return nil, err
	}

	m := NewManager(Options{
		Dir:     cfg.DownloadDir,
		Store:   data.NewStore(backend),
		Fetcher: fetcher,
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err := m.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open download manager: %w", err)
	}
	return m, nil
}
