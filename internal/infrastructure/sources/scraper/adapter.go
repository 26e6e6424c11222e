// Package scraper reads store listings that are only available as rendered HTML.
package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/browser"
	"github.com/pricelens/backend/internal/infrastructure/ratelimit"
)

// Adapter is a price source backed by a headless browser
type Adapter struct {
	site       Site
	renderer   browser.Renderer
	politeness *ratelimit.Politeness
	logger     *zap.Logger
}

// NewAdapter creates a scraper for site. Each adapter paces its own requests.
func NewAdapter(site Site, renderer browser.Renderer, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		site:       site,
		renderer:   renderer,
		politeness: ratelimit.NewPoliteness(site.Interval, site.Jitter),
		logger:     logger.With(zap.String("source", site.ID)),
	}
}

func (a *Adapter) ID() string { return a.site.ID }

func (a *Adapter) Kind() domain.SourceKind { return domain.KindScraper }

// Search renders the store listing for name and extracts its product cards
func (a *Adapter) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	keywords := name
	if a.site.Keywords != nil {
		keywords = a.site.Keywords(name)
	}
	if keywords == "" {
		a.logger.Debug("no usable keywords", zap.String("query", name))
		return nil, nil
	}

	if err := a.politeness.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", a.site.ID, err)
	}

	searchURL := a.site.SearchURL(keywords)
	html, err := a.renderer.Render(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	offers, err := Extract(a.site, html)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("listing scraped",
		zap.String("url", searchURL),
		zap.Int("offers", len(offers)))
	return offers, nil
}
