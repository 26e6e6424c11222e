package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// MockAdapter is a mock implementation of domain.SourceAdapter
type MockAdapter struct {
	id     string
	kind   domain.SourceKind
	offers []domain.RawOffer
	err    error
	delay  time.Duration
	panics bool
	calls  atomic.Int32
}

func (m *MockAdapter) ID() string { return m.id }

func (m *MockAdapter) Kind() domain.SourceKind { return m.kind }

func (m *MockAdapter) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	m.calls.Add(1)
	if m.panics {
		panic("adapter exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.offers, m.err
}

// MockCache is a mock implementation of domain.ResultCache
type MockCache struct {
	mu       sync.Mutex
	data     map[string][]domain.Offer
	getError error
	setCalls int
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]domain.Offer)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	offers, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return domain.CloneOffers(offers), nil
}

func (m *MockCache) Set(ctx context.Context, key string, offers []domain.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.data[key] = domain.CloneOffers(offers)
	return nil
}

// MockCatalog is a mock implementation of domain.CatalogLookup
type MockCatalog struct {
	product *domain.CatalogProduct
	err     error
	calls   int
}

func (m *MockCatalog) LookupByBarcode(ctx context.Context, barcode string) (*domain.CatalogProduct, error) {
	m.calls++
	return m.product, m.err
}

// MockVision is a mock implementation of domain.VisionIdentifier
type MockVision struct {
	result *domain.VisionResult
	err    error
	calls  int
}

func (m *MockVision) Identify(ctx context.Context, image []byte) (*domain.VisionResult, error) {
	m.calls++
	return m.result, m.err
}

// MockWebSearcher is a mock implementation of domain.WebSearcher
type MockWebSearcher struct {
	name  string
	err   error
	query string
	calls int
}

func (m *MockWebSearcher) TopResultName(ctx context.Context, query string) (string, error) {
	m.calls++
	m.query = query
	return m.name, m.err
}

// MockHistory is a mock implementation of domain.HistoryRecorder
type MockHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	err     error
}

func (m *MockHistory) Record(ctx context.Context, entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockHistory) Entries() []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryEntry(nil), m.entries...)
}

func boolPtr(b bool) *bool { return &b }
