package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

// ResolverConfig holds the per-step time budgets of the resolver
type ResolverConfig struct {
	CatalogTimeout   time.Duration
	VisionTimeout    time.Duration
	WebSearchTimeout time.Duration
}

// Resolver turns a barcode, photo or free text into a canonical product name.
// Steps run one after another; each is tried only when the previous one
// produced nothing.
type Resolver struct {
	catalog domain.CatalogLookup
	vision  domain.VisionIdentifier
	web     domain.WebSearcher
	cleaner *NameCleaner
	config  ResolverConfig
	logger  *zap.Logger
}

// NewResolver creates a resolver. vision and web may be nil when the
// corresponding service is not configured.
func NewResolver(
	catalog domain.CatalogLookup,
	vision domain.VisionIdentifier,
	web domain.WebSearcher,
	cleaner *NameCleaner,
	config ResolverConfig,
	logger *zap.Logger,
) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleaner == nil {
		cleaner = NewNameCleaner(logger)
	}
	if config.CatalogTimeout <= 0 {
		config.CatalogTimeout = 8 * time.Second
	}
	if config.VisionTimeout <= 0 {
		config.VisionTimeout = 20 * time.Second
	}
	if config.WebSearchTimeout <= 0 {
		config.WebSearchTimeout = 45 * time.Second
	}

	return &Resolver{
		catalog: catalog,
		vision:  vision,
		web:     web,
		cleaner: cleaner,
		config:  config,
		logger:  logger.Named("resolver"),
	}
}

// Resolve runs the identification chain:
// catalog by barcode -> vision on the image -> web search for the barcode -> free text.
// It returns domain.ErrResolutionFailure when every step comes up empty.
func (r *Resolver) Resolve(ctx context.Context, input domain.ResolveInput) (*domain.IdentifiedProduct, error) {
	barcode := strings.TrimSpace(input.Barcode)

	if barcode != "" && r.catalog != nil {
		if product := r.fromCatalog(ctx, barcode); product != nil {
			return product, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(input.Image) > 0 && r.vision != nil {
		if product := r.fromVision(ctx, input.Image); product != nil {
			product.Barcode = barcode
			return product, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if barcode != "" && r.web != nil {
		if product := r.fromWebSearch(ctx, barcode); product != nil {
			return product, nil
		}
	}

	if name := r.cleaner.Clean(input.FreeText, ""); name != "" {
		return &domain.IdentifiedProduct{
			CanonicalName: name,
			Barcode:       barcode,
			Source:        domain.SourceFreeText,
			Confidence:    domain.ConfidenceMedium,
		}, nil
	}

	return nil, fmt.Errorf("%w: barcode=%q image=%t", domain.ErrResolutionFailure, barcode, len(input.Image) > 0)
}

func (r *Resolver) fromCatalog(ctx context.Context, barcode string) *domain.IdentifiedProduct {
	stepCtx, cancel := context.WithTimeout(ctx, r.config.CatalogTimeout)
	defer cancel()

	product, err := r.catalog.LookupByBarcode(stepCtx, barcode)
	if err != nil {
		r.logStepFailure("catalog", err)
		return nil
	}
	if product == nil || strings.TrimSpace(product.Name) == "" {
		return nil
	}

	r.logger.Info("identified by catalog", zap.String("barcode", barcode), zap.String("name", product.Name))
	return &domain.IdentifiedProduct{
		CanonicalName: product.Name,
		Brand:         product.Brand,
		Category:      product.Category,
		Barcode:       barcode,
		ImageURL:      product.ImageURL,
		Source:        domain.SourceCatalog,
		Confidence:    domain.ConfidenceHigh,
	}
}

func (r *Resolver) fromVision(ctx context.Context, image []byte) *domain.IdentifiedProduct {
	stepCtx, cancel := context.WithTimeout(ctx, r.config.VisionTimeout)
	defer cancel()

	result, err := r.vision.Identify(stepCtx, image)
	if err != nil {
		r.logStepFailure("vision", err)
		return nil
	}
	if result == nil || result.Name == "" || result.Confidence == domain.ConfidenceLow {
		r.logger.Debug("vision result rejected")
		return nil
	}

	r.logger.Info("identified by vision",
		zap.String("name", result.Name),
		zap.Stringer("confidence", result.Confidence))
	return &domain.IdentifiedProduct{
		CanonicalName: result.Name,
		Brand:         result.Brand,
		Category:      result.Category,
		Source:        domain.SourceVision,
		Confidence:    result.Confidence,
	}
}

func (r *Resolver) fromWebSearch(ctx context.Context, barcode string) *domain.IdentifiedProduct {
	stepCtx, cancel := context.WithTimeout(ctx, r.config.WebSearchTimeout)
	defer cancel()

	title, err := r.web.TopResultName(stepCtx, barcode)
	if err != nil {
		r.logStepFailure("web_search", err)
		return nil
	}

	name := r.cleaner.Clean(title, "")
	if name == "" {
		name = strings.TrimSpace(title)
	}
	if name == "" {
		return nil
	}

	r.logger.Info("identified by web search", zap.String("barcode", barcode), zap.String("name", name))
	return &domain.IdentifiedProduct{
		CanonicalName: name,
		Barcode:       barcode,
		Source:        domain.SourceWebSearch,
		Confidence:    domain.ConfidenceMedium,
	}
}

func (r *Resolver) logStepFailure(step string, err error) {
	if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrLowConfidence) {
		r.logger.Debug("resolution step found nothing", zap.String("step", step), zap.Error(err))
		return
	}
	r.logger.Warn("resolution step failed", zap.String("step", step), zap.Error(err))
}
