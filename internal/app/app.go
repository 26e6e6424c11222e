// Package app assembles the pricing pipeline from configuration. Both the
// HTTP server and the CLI build their object graph here.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/browser"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/history"
	"github.com/pricelens/backend/internal/infrastructure/openfoodfacts"
	"github.com/pricelens/backend/internal/infrastructure/sources/mercadolibre"
	"github.com/pricelens/backend/internal/infrastructure/sources/scraper"
	"github.com/pricelens/backend/internal/infrastructure/sources/serpapi"
	"github.com/pricelens/backend/internal/infrastructure/sources/vtex"
	"github.com/pricelens/backend/internal/infrastructure/vision"
	"github.com/pricelens/backend/internal/usecase"
)

// Cache is the result cache as seen by the app: memoization plus stats
type Cache interface {
	domain.ResultCache
	Stats(ctx context.Context) (cache.Stats, error)
}

// App holds the assembled pipeline and everything that must be closed on exit
type App struct {
	Pricing    *usecase.PricingService
	Aggregator *usecase.Aggregator
	Cache      Cache
	// History is nil when no history store is configured
	History *history.SQLRecorder

	logger  *zap.Logger
	closers []io.Closer
}

// New builds the pipeline described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	resultCache, err := a.buildCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.Cache = resultCache

	adapters, market := a.buildSources(cfg)
	if len(adapters) == 0 {
		a.Close()
		return nil, fmt.Errorf("no price sources configured")
	}

	visionID, err := a.buildVision(ctx, cfg.Vision)
	if err != nil {
		a.Close()
		return nil, err
	}

	var web domain.WebSearcher
	switch {
	case cfg.SerpAPI.APIKey != "":
		web = serpapi.NewClient(serpAPIOptions(cfg), logger)
	case market != nil:
		web = usecase.NewOfferNameSearcher(market)
		logger.Info("web search falls back to marketplace titles", zap.String("source", market.ID()))
	default:
		logger.Warn("no web searcher configured; barcode lookups stop after the catalog")
	}

	if cfg.History.Driver == history.DriverPostgres || cfg.History.Driver == history.DriverSQLite {
		recorder, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.History = recorder
		a.closers = append(a.closers, recorder)
	}

	cleaner := usecase.NewNameCleaner(logger)
	catalog := openfoodfacts.NewClient(cfg.Catalog.BaseURL, cfg.RateLimit.CatalogRPS, logger)

	resolver := usecase.NewResolver(catalog, visionID, web, cleaner, usecase.ResolverConfig{
		CatalogTimeout:   cfg.Resolver.CatalogTimeout,
		VisionTimeout:    cfg.Resolver.VisionTimeout,
		WebSearchTimeout: cfg.Resolver.WebSearchTimeout,
	}, logger)

	a.Aggregator = usecase.NewAggregator(adapters, resultCache, usecase.AggregatorConfig{
		SourceTimeout:     cfg.Aggregation.SourceTimeout,
		MaxInFlight:       cfg.Aggregation.MaxInFlight,
		MaxBrowserSources: cfg.Aggregation.MaxBrowserSources,
		DefaultCurrency:   cfg.Aggregation.DefaultCurrency,
	}, logger)

	var recorder domain.HistoryRecorder
	if a.History != nil {
		recorder = a.History
	}
	a.Pricing = usecase.NewPricingService(resolver, a.Aggregator, recorder, usecase.PricingServiceConfig{
		Locale:         cfg.Aggregation.Locale,
		HistoryTimeout: cfg.Aggregation.HistoryTimeout,
	}, logger)

	logger.Info("pipeline ready",
		zap.Strings("sources", a.Aggregator.Sources()),
		zap.Bool("vision", visionID != nil),
		zap.Bool("web_search", web != nil),
		zap.String("history", cfg.History.Driver),
	)
	return a, nil
}

// Close waits for background history writes, then releases browsers,
// database handles and cache connections
func (a *App) Close() {
	if a.Pricing != nil {
		a.Pricing.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) buildCache(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	if cfg.Type == "redis" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, rc)
		a.logger.Info("result cache", zap.String("type", "redis"), zap.Duration("ttl", cfg.TTL))
		return rc, nil
	}
	a.logger.Info("result cache", zap.String("type", "memory"), zap.Duration("ttl", cfg.TTL))
	return cache.NewMemoryCache(cfg.TTL), nil
}

// buildSources returns every enabled adapter, plus the marketplace adapter
// (if any) that can stand in for web search
func (a *App) buildSources(cfg *config.Config) ([]domain.SourceAdapter, domain.SourceAdapter) {
	var (
		adapters []domain.SourceAdapter
		market   domain.SourceAdapter
	)

	for _, s := range cfg.VTEX.Stores {
		if s.ID == "" || s.BaseURL == "" {
			continue
		}
		adapters = append(adapters, vtex.NewClient(vtex.Store{
			ID:       s.ID,
			Platform: s.Platform,
			BaseURL:  s.BaseURL,
			Currency: cfg.Aggregation.DefaultCurrency,
		}, cfg.RateLimit.CatalogRPS, a.logger))
	}

	if cfg.MercadoLibre.Enabled {
		ml := mercadolibre.NewClient(cfg.MercadoLibre.BaseURL, cfg.MercadoLibre.SiteID, cfg.RateLimit.CatalogRPS, a.logger)
		adapters = append(adapters, ml)
		market = ml
	}

	if cfg.SerpAPI.APIKey != "" {
		adapters = append(adapters, serpapi.NewShopping(serpapi.NewClient(serpAPIOptions(cfg), a.logger)))
	}

	if cfg.Scraper.Enabled && len(cfg.Scraper.Sites) > 0 {
		pool := browser.NewPool(browser.Options{
			Headless:   cfg.Scraper.Headless,
			Bin:        cfg.Scraper.BrowserBin,
			PageBudget: cfg.Scraper.PageTimeout,
		}, a.logger)
		a.closers = append(a.closers, pool)

		for _, id := range cfg.Scraper.Sites {
			site, ok := scraper.SiteByID(id)
			if !ok {
				a.logger.Warn("unknown scraping site", zap.String("site", id))
				continue
			}
			site.Interval = cfg.Scraper.PolitenessFor(id)
			adapters = append(adapters, scraper.NewAdapter(site, pool, a.logger))
		}
	}

	return adapters, market
}

func (a *App) buildVision(ctx context.Context, cfg config.VisionConfig) (domain.VisionIdentifier, error) {
	if cfg.APIKey == "" {
		a.logger.Warn("vision API key not configured; photo identification disabled")
		return nil, nil
	}
	id, err := vision.NewGeminiIdentifier(ctx, cfg.APIKey, cfg.Model, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return id, nil
}

func serpAPIOptions(cfg *config.Config) serpapi.Options {
	return serpapi.Options{
		APIKey:   cfg.SerpAPI.APIKey,
		BaseURL:  cfg.SerpAPI.BaseURL,
		Location: cfg.SerpAPI.Location,
		Country:  cfg.SerpAPI.Country,
		Language: cfg.SerpAPI.Language,
		RPS:      cfg.RateLimit.CatalogRPS,
	}
}
