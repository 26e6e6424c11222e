package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Confidence is an ordered identification confidence: low < medium < high
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the lower-case name of the confidence level
func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseConfidence maps "high"/"medium"/"low" (any case) to a Confidence.
// Unknown values are treated as low.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MarshalJSON encodes the confidence as its name
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a confidence name
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseConfidence(s)
	return nil
}

// IdentificationSource names the resolver step that produced a product
type IdentificationSource string

const (
	SourceCatalog   IdentificationSource = "catalog"
	SourceVision    IdentificationSource = "vision"
	SourceWebSearch IdentificationSource = "web_search"
	SourceFreeText  IdentificationSource = "free_text"
)

// IdentifiedProduct is the canonical product the price search runs against
type IdentifiedProduct struct {
	CanonicalName string               `json:"canonicalName"`
	Brand         string               `json:"brand,omitempty"`
	Category      string               `json:"category,omitempty"`
	Barcode       string               `json:"barcode,omitempty"`
	ImageURL      string               `json:"imageUrl,omitempty"`
	Source        IdentificationSource `json:"sourceOfIdentification"`
	Confidence    Confidence           `json:"confidence"`
}

// ResolveInput is the ambiguous input handed to the resolver
type ResolveInput struct {
	Barcode  string
	Image    []byte
	FreeText string
	UserID   string
}

// CatalogProduct is a product record found by barcode
type CatalogProduct struct {
	Barcode      string
	Name         string // search-friendly name
	OriginalName string
	Brand        string
	Quantity     string
	Category     string
	ImageURL     string
}

// VisionResult is what the vision collaborator recognized in an image
type VisionResult struct {
	Name       string
	Brand      string
	Quantity   string
	Category   string
	Confidence Confidence
}

// PriceResult is the payload of a full identify-and-price request
type PriceResult struct {
	Product IdentifiedProduct `json:"product"`
	Offers  []Offer           `json:"offers"`
}

// HistoryEntry is what gets recorded after a successful search
type HistoryEntry struct {
	ID          string
	UserID      string
	Barcode     string
	ProductName string
	Brand       string
	Source      IdentificationSource
	Confidence  Confidence
	OfferCount  int
	BestPrice   decimal.Decimal
	SearchedAt  time.Time
}
