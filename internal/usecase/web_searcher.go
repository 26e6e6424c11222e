package usecase

import (
	"context"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// OfferNameSearcher uses a price source as a web search: the name of the
// first offer it returns for a query is taken as the product name.
// It serves as the web-search fallback when no search API key is configured.
type OfferNameSearcher struct {
	source domain.SourceAdapter
}

// NewOfferNameSearcher creates a searcher backed by source
func NewOfferNameSearcher(source domain.SourceAdapter) *OfferNameSearcher {
	return &OfferNameSearcher{source: source}
}

// TopResultName returns the first non-empty offer name for query
func (s *OfferNameSearcher) TopResultName(ctx context.Context, query string) (string, error) {
	offers, err := s.source.Search(ctx, query)
	if err != nil {
		return "", err
	}
	for _, o := range offers {
		if name := strings.TrimSpace(o.Name); name != "" {
			return name, nil
		}
	}
	return "", domain.ErrProductNotFound
}
