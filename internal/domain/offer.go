package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind classifies an adapter by how trustworthy its matches are
type SourceKind string

const (
	// KindCatalog is a curated store catalog; its prices are trusted as-is
	KindCatalog SourceKind = "catalog"
	// KindMarketSearch is a broad shopping search that can match the wrong variant
	KindMarketSearch SourceKind = "market_search"
	// KindScraper is an HTML page rendered through a headless browser
	KindScraper SourceKind = "scraper"
)

// ProductQuery is the search handed to the aggregation engine.
// It is passed by value and never mutated during a search.
type ProductQuery struct {
	Text     string `json:"text"`
	Barcode  string `json:"barcode,omitempty"`
	// Locale is a BCP 47 tag such as "es-PE"; its region picks the
	// currency of offers that name none
	Locale   string `json:"locale,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// RawOffer is what a single adapter emits before normalization.
// Price and Shipping are kept as text because sources disagree on formats.
type RawOffer struct {
	SourceID       string
	Platform       string
	Name           string
	Price          string
	Currency       string
	URL            string
	ImageURL       string
	Shipping       string
	Available      *bool
	PriceOnRequest bool
}

// Offer is one normalized, validated price record returned to callers
type Offer struct {
	Platform  string          `json:"platform"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	URL       string          `json:"url"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Shipping  decimal.Decimal `json:"shipping"`
	Available bool            `json:"available"`
}

// Total is the landed price used for ordering
func (o Offer) Total() decimal.Decimal {
	return o.Price.Add(o.Shipping)
}

// OutcomeStatus is the terminal state of one adapter call
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeTimeout OutcomeStatus = "timeout"
)

// SourceOutcome records how one adapter fared for one request.
// It is used for logging and never returned to callers.
type SourceOutcome struct {
	SourceID string
	Kind     SourceKind
	Status   OutcomeStatus
	Offers   []RawOffer
	Err      error
	Elapsed  time.Duration
}

// CacheEntry is a memoized aggregation result
type CacheEntry struct {
	Key       string
	Offers    []Offer
	CreatedAt time.Time
}

// CloneOffers returns a copy of offers that shares no backing array with the input
func CloneOffers(offers []Offer) []Offer {
	if offers == nil {
		return nil
	}
	out := make([]Offer, len(offers))
	copy(out, offers)
	return out
}
