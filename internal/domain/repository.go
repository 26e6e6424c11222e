package domain

import "context"

// ResultCache memoizes aggregation results by normalized query.
// Implementations hand out copies so callers cannot corrupt cached data.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]Offer, error)
	Set(ctx context.Context, key string, offers []Offer) error
}

// SourceAdapter is implemented by every price source
type SourceAdapter interface {
	// ID is a stable identifier used in logs and outcome reporting
	ID() string
	Kind() SourceKind
	// Search returns whatever offers the source has for canonicalName.
	// Per-item problems are absorbed; a returned error means the whole call failed.
	Search(ctx context.Context, canonicalName string) ([]RawOffer, error)
}

// CatalogLookup finds a product by exact barcode
type CatalogLookup interface {
	LookupByBarcode(ctx context.Context, barcode string) (*CatalogProduct, error)
}

// VisionIdentifier recognizes a product in an image
type VisionIdentifier interface {
	Identify(ctx context.Context, image []byte) (*VisionResult, error)
}

// WebSearcher returns the displayed name of the top search result for a query
type WebSearcher interface {
	TopResultName(ctx context.Context, query string) (string, error)
}

// HistoryRecorder persists completed searches
type HistoryRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) error
}
