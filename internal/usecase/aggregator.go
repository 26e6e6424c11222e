package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pricelens/backend/internal/domain"
)

// AggregatorConfig holds configuration for the aggregation engine
type AggregatorConfig struct {
	SourceTimeout     time.Duration
	MaxInFlight       int
	MaxBrowserSources int
	DefaultCurrency   string
}

// Aggregator fans a product name out to every registered price source and
// merges what comes back.
type Aggregator struct {
	adapters   []domain.SourceAdapter
	cache      domain.ResultCache
	normalizer *Normalizer
	browsers   *semaphore.Weighted
	config     AggregatorConfig
	logger     *zap.Logger
}

// NewAggregator creates an aggregation engine over adapters
func NewAggregator(
	adapters []domain.SourceAdapter,
	cache domain.ResultCache,
	config AggregatorConfig,
	logger *zap.Logger,
) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = 45 * time.Second
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = len(adapters)
	}
	if config.MaxBrowserSources <= 0 {
		config.MaxBrowserSources = 1
	}

	return &Aggregator{
		adapters:   adapters,
		cache:      cache,
		normalizer: NewNormalizer(config.DefaultCurrency, logger),
		browsers:   semaphore.NewWeighted(int64(config.MaxBrowserSources)),
		config:     config,
		logger:     logger.Named("aggregator"),
	}
}

// Sources returns the IDs of the registered adapters
func (a *Aggregator) Sources() []string {
	ids := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		ids[i] = ad.ID()
	}
	return ids
}

// Aggregate returns the deduplicated offers for query, cheapest first.
// Flow: check cache -> query every source -> normalize -> dedupe -> filter -> sort -> cache.
// An empty result is not an error.
func (a *Aggregator) Aggregate(ctx context.Context, query domain.ProductQuery) ([]domain.Offer, error) {
	key := CacheKey(query.Text)
	if key == "" {
		return nil, domain.ErrInvalidRequest
	}

	if a.cache != nil {
		cached, err := a.cache.Get(ctx, key)
		if err == nil {
			a.logger.Debug("cache hit", zap.String("key", key), zap.Int("offers", len(cached)))
			return cached, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			a.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	started := time.Now()
	outcomes := a.collect(ctx, query.Text)

	var items []sourcedOffer
	for _, outcome := range outcomes {
		if outcome.Status != domain.OutcomeSuccess {
			continue
		}
		for _, raw := range outcome.Offers {
			items = append(items, sourcedOffer{raw: raw, kind: outcome.Kind})
		}
	}

	candidates := a.normalizer.normalize(query, items)
	candidates = dedupe(candidates)
	candidates = filterOutliers(candidates)
	sortByTotal(candidates)

	offers := make([]domain.Offer, len(candidates))
	for i, c := range candidates {
		offers[i] = c.offer
	}

	a.logger.Info("aggregation finished",
		zap.String("query", query.Text),
		zap.Int("raw", len(items)),
		zap.Int("offers", len(offers)),
		zap.Duration("elapsed", time.Since(started)))

	if len(offers) > 0 && a.cache != nil {
		if err := a.cache.Set(ctx, key, offers); err != nil {
			a.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return offers, nil
}

// collect runs every adapter and waits for all of them to settle.
// Adapter errors never cancel siblings.
func (a *Aggregator) collect(ctx context.Context, name string) []domain.SourceOutcome {
	outcomes := make([]domain.SourceOutcome, len(a.adapters))

	var g errgroup.Group
	g.SetLimit(a.config.MaxInFlight)
	for i, adapter := range a.adapters {
		g.Go(func() error {
			outcomes[i] = a.run(ctx, adapter, name)
			a.logOutcome(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

type searchResult struct {
	offers []domain.RawOffer
	err    error
}

// run calls one adapter under its own timeout. Browser-backed adapters
// first take a slot from the browser semaphore; the timeout starts once
// the slot is held.
func (a *Aggregator) run(ctx context.Context, adapter domain.SourceAdapter, name string) domain.SourceOutcome {
	outcome := domain.SourceOutcome{SourceID: adapter.ID(), Kind: adapter.Kind()}
	started := time.Now()

	if outcome.Kind == domain.KindScraper {
		if err := a.browsers.Acquire(ctx, 1); err != nil {
			outcome.Status = domain.OutcomeTimeout
			outcome.Err = err
			outcome.Elapsed = time.Since(started)
			return outcome
		}
		defer a.browsers.Release(1)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.SourceTimeout)
	defer cancel()

	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchResult{err: fmt.Errorf("%w: panic: %v", domain.ErrSourceFailure, r)}
			}
		}()
		offers, err := adapter.Search(callCtx, name)
		done <- searchResult{offers: offers, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = searchResult{err: fmt.Errorf("%w: %v", domain.ErrSourceTimeout, callCtx.Err())}
	}

	switch {
	case res.err == nil:
		outcome.Status = domain.OutcomeSuccess
		outcome.Offers = res.offers
	case errors.Is(res.err, domain.ErrSourceTimeout) || errors.Is(res.err, context.DeadlineExceeded):
		outcome.Status = domain.OutcomeTimeout
		outcome.Err = res.err
	default:
		outcome.Status = domain.OutcomeFailure
		outcome.Err = res.err
	}
	outcome.Elapsed = time.Since(started)
	return outcome
}

func (a *Aggregator) logOutcome(o domain.SourceOutcome) {
	fields := []zap.Field{
		zap.String("source", o.SourceID),
		zap.String("kind", string(o.Kind)),
		zap.String("status", string(o.Status)),
		zap.Duration("elapsed", o.Elapsed),
	}
	switch o.Status {
	case domain.OutcomeSuccess:
		a.logger.Debug("source finished", append(fields, zap.Int("offers", len(o.Offers)))...)
	default:
		a.logger.Warn("source failed", append(fields, zap.Error(o.Err))...)
	}
}
