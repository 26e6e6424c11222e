package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func threeAdapters() []domain.SourceAdapter {
	return []domain.SourceAdapter{
		&MockAdapter{id: "slow", kind: domain.KindCatalog, delay: time.Minute},
		&MockAdapter{id: "broken", kind: domain.KindMarketSearch, err: domain.ErrSourceFailure},
		&MockAdapter{id: "plazavea", kind: domain.KindCatalog, offers: []domain.RawOffer{
			{SourceID: "plazavea", Platform: "Plaza Vea", Name: "Leche Gloria Azul 400g", Price: "S/ 4,20", URL: "https://www.plazavea.com.pe/leche-gloria/p"},
			{SourceID: "plazavea", Platform: "Plaza Vea", Name: "Leche Gloria Light 400g", Price: "3.90", URL: "/leche-light/p"},
		}},
	}
}

func TestAggregate_TimeoutErrorAndSuccess(t *testing.T) {
	agg := NewAggregator(threeAdapters(), NewMockCache(), AggregatorConfig{
		SourceTimeout:   50 * time.Millisecond,
		DefaultCurrency: "PEN",
	}, nil)

	offers, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "Leche Gloria"})
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Leche Gloria Light 400g", offers[0].Name)
	assert.Equal(t, "3.9", offers[0].Price.String())
	assert.Equal(t, "https://www.plazavea.com.pe/search/?_query=Leche+Gloria", offers[0].URL)
	assert.Equal(t, "Leche Gloria Azul 400g", offers[1].Name)
	assert.Equal(t, "4.2", offers[1].Price.String())
	assert.Equal(t, "PEN", offers[1].Currency)
}

func TestAggregate_CacheHitSkipsAdapters(t *testing.T) {
	adapter := &MockAdapter{id: "wong", kind: domain.KindCatalog, offers: []domain.RawOffer{
		{Platform: "Wong", Name: "Arroz Costeño 5kg", Price: "21.90", URL: "https://www.wong.pe/arroz/p"},
	}}
	resultCache := NewMockCache()
	agg := NewAggregator([]domain.SourceAdapter{adapter}, resultCache, AggregatorConfig{}, nil)

	first, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "Arroz  Costeño"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "arroz costeño"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), adapter.calls.Load())
	assert.Equal(t, 1, resultCache.setCalls)
}

func TestAggregate_CacheExpiryIsAMiss(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	resultCache := cache.NewMemoryCache(30 * time.Minute).WithClock(func() time.Time { return now })
	adapter := &MockAdapter{id: "metro", kind: domain.KindCatalog, offers: []domain.RawOffer{
		{Platform: "Metro", Name: "Aceite Primor 1L", Price: "9.90", URL: "https://www.metro.pe/aceite/p"},
	}}
	agg := NewAggregator([]domain.SourceAdapter{adapter}, resultCache, AggregatorConfig{}, nil)

	_, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "aceite primor"})
	require.NoError(t, err)

	now = now.Add(29 * time.Minute)
	_, err = agg.Aggregate(context.Background(), domain.ProductQuery{Text: "aceite primor"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), adapter.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = agg.Aggregate(context.Background(), domain.ProductQuery{Text: "aceite primor"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), adapter.calls.Load())
}

func TestAggregate_CachedCopyIsIsolated(t *testing.T) {
	adapter := &MockAdapter{id: "wong", kind: domain.KindCatalog, offers: []domain.RawOffer{
		{Platform: "Wong", Name: "Pan Bimbo", Price: "8.50", URL: "https://www.wong.pe/pan/p"},
	}}
	agg := NewAggregator([]domain.SourceAdapter{adapter}, cache.NewMemoryCache(time.Minute), AggregatorConfig{}, nil)

	first, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "pan bimbo"})
	require.NoError(t, err)
	first[0].Name = "tampered"

	second, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "pan bimbo"})
	require.NoError(t, err)
	assert.Equal(t, "Pan Bimbo", second[0].Name)
}

func TestAggregate_AllSourcesEmpty(t *testing.T) {
	resultCache := NewMockCache()
	agg := NewAggregator([]domain.SourceAdapter{
		&MockAdapter{id: "a", kind: domain.KindCatalog},
		&MockAdapter{id: "b", kind: domain.KindMarketSearch, err: errors.New("boom")},
	}, resultCache, AggregatorConfig{}, nil)

	offers, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "nada"})
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Zero(t, resultCache.setCalls, "empty results are not cached")
}

func TestAggregate_RecoversFromPanics(t *testing.T) {
	agg := NewAggregator([]domain.SourceAdapter{
		&MockAdapter{id: "panicky", kind: domain.KindScraper, panics: true},
		&MockAdapter{id: "ok", kind: domain.KindCatalog, offers: []domain.RawOffer{
			{Platform: "Wong", Name: "Yogurt Gloria", Price: "6", URL: "https://www.wong.pe/yogurt/p"},
		}},
	}, nil, AggregatorConfig{}, nil)

	offers, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "yogurt"})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestAggregate_RejectsEmptyQuery(t *testing.T) {
	agg := NewAggregator(nil, nil, AggregatorConfig{}, nil)
	_, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAggregate_FiltersMarketOutliers(t *testing.T) {
	market := []domain.RawOffer{
		{Platform: "A", Name: "Agua San Luis 625ml", Price: "2.00", URL: "https://a.example/1"},
		{Platform: "B", Name: "Agua San Luis 625ml", Price: "2.50", URL: "https://b.example/1"},
		{Platform: "C", Name: "Agua San Luis 625ml", Price: "3.00", URL: "https://c.example/1"},
		{Platform: "D", Name: "Agua San Luis 625ml", Price: "2.80", URL: "https://d.example/1"},
		{Platform: "E", Name: "Agua San Luis Bidón 20L", Price: "450", URL: "https://e.example/1"},
	}
	agg := NewAggregator([]domain.SourceAdapter{
		&MockAdapter{id: "google_shopping", kind: domain.KindMarketSearch, offers: market},
	}, nil, AggregatorConfig{}, nil)

	offers, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "agua san luis"})
	require.NoError(t, err)
	require.Len(t, offers, 4)
	assert.Equal(t, "A", offers[0].Platform)
	assert.Equal(t, "C", offers[3].Platform)
}

// blockingAdapter counts how many of its calls run at the same time
type blockingAdapter struct {
	id      string
	running *atomic.Int32
	peak    *atomic.Int32
}

func (b *blockingAdapter) ID() string { return b.id }

func (b *blockingAdapter) Kind() domain.SourceKind { return domain.KindScraper }

func (b *blockingAdapter) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return nil, nil
}

func TestAggregate_BoundsBrowserSources(t *testing.T) {
	var running, peak atomic.Int32
	adapters := make([]domain.SourceAdapter, 4)
	for i := range adapters {
		adapters[i] = &blockingAdapter{id: "scraper", running: &running, peak: &peak}
	}

	agg := NewAggregator(adapters, nil, AggregatorConfig{MaxBrowserSources: 2, MaxInFlight: 8}, nil)
	_, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "galletas"})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(0), running.Load())
}

func TestAggregator_Sources(t *testing.T) {
	agg := NewAggregator(threeAdapters(), nil, AggregatorConfig{}, nil)
	assert.Equal(t, []string{"slow", "broken", "plazavea"}, agg.Sources())
}

func TestAggregate_DropsNegativePrices(t *testing.T) {
	adapter := &MockAdapter{id: "wong", kind: domain.KindCatalog, offers: []domain.RawOffer{
		{Platform: "Wong", Name: "Refund line", Price: "-15.00", URL: "https://www.wong.pe/refund/p"},
		{Platform: "Wong", Name: "Leche Gloria 400g", Price: "3.99", URL: "https://www.wong.pe/leche/p"},
	}}
	agg := NewAggregator([]domain.SourceAdapter{adapter}, NewMockCache(), AggregatorConfig{SourceTimeout: time.Second}, nil)

	offers, err := agg.Aggregate(context.Background(), domain.ProductQuery{Text: "leche gloria"})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Leche Gloria 400g", offers[0].Name)
}
