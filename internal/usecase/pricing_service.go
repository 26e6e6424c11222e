package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

// PricingServiceConfig holds configuration for the pricing service
type PricingServiceConfig struct {
	// Locale is attached to every price search, e.g. "es-PE"
	Locale         string
	HistoryTimeout time.Duration
}

// PricingService is the entry point of the pipeline: identify, then price
type PricingService struct {
	resolver   *Resolver
	aggregator *Aggregator
	history    domain.HistoryRecorder
	cleaner    *NameCleaner
	config     PricingServiceConfig
	logger     *zap.Logger
	pending    sync.WaitGroup
}

// NewPricingService creates a new pricing service. history may be nil.
func NewPricingService(
	resolver *Resolver,
	aggregator *Aggregator,
	history domain.HistoryRecorder,
	config PricingServiceConfig,
	logger *zap.Logger,
) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.HistoryTimeout <= 0 {
		config.HistoryTimeout = 5 * time.Second
	}

	return &PricingService{
		resolver:   resolver,
		aggregator: aggregator,
		history:    history,
		cleaner:    NewNameCleaner(logger),
		config:     config,
		logger:     logger.Named("pricing"),
	}
}

// IdentifyAndPrice resolves input to a product and collects its offers.
// Flow: resolve (skipped for plain text) -> aggregate -> record history in the background.
// When no source has offers the product is still returned, together with domain.ErrNoOffers.
func (s *PricingService) IdentifyAndPrice(ctx context.Context, input domain.ResolveInput) (*domain.PriceResult, error) {
	input.Barcode = strings.TrimSpace(input.Barcode)
	input.FreeText = strings.TrimSpace(input.FreeText)
	if input.Barcode == "" && len(input.Image) == 0 && input.FreeText == "" {
		return nil, domain.ErrInvalidRequest
	}

	product, err := s.identify(ctx, input)
	if err != nil {
		return nil, err
	}

	offers, err := s.aggregator.Aggregate(ctx, domain.ProductQuery{
		Text:    product.CanonicalName,
		Barcode: input.Barcode,
		Locale:  s.config.Locale,
	})
	if err != nil {
		return nil, err
	}

	if product.ImageURL == "" {
		for _, o := range offers {
			if o.ImageURL != "" {
				product.ImageURL = o.ImageURL
				break
			}
		}
	}

	result := &domain.PriceResult{Product: *product, Offers: offers}
	s.recordAsync(input.UserID, result)

	if len(offers) == 0 {
		return result, domain.ErrNoOffers
	}
	return result, nil
}

// SearchByName prices query directly, without identification
func (s *PricingService) SearchByName(ctx context.Context, query string) ([]domain.Offer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidRequest
	}

	offers, err := s.aggregator.Aggregate(ctx, domain.ProductQuery{
		Text:   query,
		Locale: s.config.Locale,
	})
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return offers, domain.ErrNoOffers
	}
	return offers, nil
}

// Wait blocks until background history writes have finished
func (s *PricingService) Wait() {
	s.pending.Wait()
}

func (s *PricingService) identify(ctx context.Context, input domain.ResolveInput) (*domain.IdentifiedProduct, error) {
	if input.Barcode == "" && len(input.Image) == 0 {
		name := s.cleaner.Clean(input.FreeText, "")
		if name == "" {
			return nil, domain.ErrInvalidRequest
		}
		return &domain.IdentifiedProduct{
			CanonicalName: name,
			Source:        domain.SourceFreeText,
			Confidence:    domain.ConfidenceHigh,
		}, nil
	}
	return s.resolver.Resolve(ctx, input)
}

// recordAsync stores the search without holding up the response.
// Failures are logged and otherwise ignored.
func (s *PricingService) recordAsync(userID string, result *domain.PriceResult) {
	if s.history == nil {
		return
	}

	entry := domain.HistoryEntry{
		UserID:      userID,
		Barcode:     result.Product.Barcode,
		ProductName: result.Product.CanonicalName,
		Brand:       result.Product.Brand,
		Source:      result.Product.Source,
		Confidence:  result.Product.Confidence,
		OfferCount:  len(result.Offers),
		SearchedAt:  time.Now(),
	}
	if len(result.Offers) > 0 {
		entry.BestPrice = result.Offers[0].Price
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.HistoryTimeout)
		defer cancel()

		if err := s.history.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record search history",
				zap.String("product", entry.ProductName),
				zap.Error(err))
		}
	}()
}
