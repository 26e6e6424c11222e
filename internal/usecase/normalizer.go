package usecase

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textnorm"
)

// sourcedOffer is a raw offer tagged with the kind of adapter that produced it
type sourcedOffer struct {
	raw  domain.RawOffer
	kind domain.SourceKind
}

// candidate is a validated offer still carrying pipeline metadata
type candidate struct {
	offer domain.Offer
	kind  domain.SourceKind
	// sourceURL is true when the URL came from the source rather than a search template
	sourceURL bool
}

// searchTemplate builds a platform search-results URL for a query
type searchTemplate struct {
	key   string
	build func(query string) string
}

// searchTemplates is matched against the folded, space-free platform name
var searchTemplates = []searchTemplate{
	{"plazavea", func(q string) string { return "https://www.plazavea.com.pe/search/?_query=" + url.QueryEscape(q) }},
	{"wong", func(q string) string { return "https://www.wong.pe/busca?ft=" + url.QueryEscape(q) }},
	{"metro", func(q string) string { return "https://www.metro.pe/busca?ft=" + url.QueryEscape(q) }},
	{"tottus", func(q string) string { return "https://www.tottus.com.pe/buscar?q=" + url.QueryEscape(q) }},
	{"mercadolibre", func(q string) string {
		return "https://listado.mercadolibre.com.pe/" + url.PathEscape(strings.Join(textnorm.Words(q), "-"))
	}},
	{"walmart", func(q string) string { return "https://www.walmart.com/search?q=" + url.QueryEscape(q) }},
	{"target", func(q string) string { return "https://www.target.com/s?searchTerm=" + url.QueryEscape(q) }},
	{"amazon", func(q string) string { return "https://www.amazon.com/s?k=" + url.QueryEscape(q) }},
}

// Normalizer turns raw adapter records into validated offers
type Normalizer struct {
	defaultCurrency string
	logger          *zap.Logger
}

// NewNormalizer creates a normalizer. defaultCurrency is used when neither
// the offer nor the query names one.
func NewNormalizer(defaultCurrency string, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		defaultCurrency: strings.ToUpper(defaultCurrency),
		logger:          logger.Named("normalizer"),
	}
}

// normalize validates every raw offer and drops the ones that cannot be
// priced or linked. Order is preserved.
func (n *Normalizer) normalize(query domain.ProductQuery, items []sourcedOffer) []candidate {
	fallback := strings.ToUpper(strings.TrimSpace(query.Currency))
	if fallback == "" {
		fallback = localeCurrency(query.Locale)
	}
	if fallback == "" {
		fallback = n.defaultCurrency
	}

	out := make([]candidate, 0, len(items))
	for _, item := range items {
		c, ok := n.normalizeOne(query.Text, fallback, item)
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func (n *Normalizer) normalizeOne(query, currency string, item sourcedOffer) (candidate, bool) {
	raw := item.raw
	drop := func(reason string) (candidate, bool) {
		n.logger.Debug("offer dropped",
			zap.String("source", raw.SourceID),
			zap.String("name", raw.Name),
			zap.String("reason", reason))
		return candidate{}, false
	}

	name := strings.Join(strings.Fields(raw.Name), " ")
	if name == "" {
		return drop("missing name")
	}
	if raw.PriceOnRequest {
		return drop("price on request")
	}

	price, err := domain.ParsePrice(raw.Price)
	if err != nil || !price.IsPositive() {
		return drop("unparsable price " + raw.Price)
	}

	// missing or unreadable shipping counts as free
	shipping, err := domain.ParsePrice(raw.Shipping)
	if err != nil {
		shipping = decimal.Zero
	}

	platform := strings.TrimSpace(raw.Platform)
	if platform == "" {
		platform = raw.SourceID
	}

	link, fromSource := repairURL(platform, raw.URL, query)
	if link == "" {
		return drop("no usable url")
	}

	offerCurrency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if offerCurrency == "" {
		offerCurrency = currency
	}

	available := true
	if raw.Available != nil {
		available = *raw.Available
	}

	image := raw.ImageURL
	if !isAbsoluteHTTP(image) {
		image = ""
	}

	return candidate{
		offer: domain.Offer{
			Platform:  platform,
			Name:      name,
			Price:     price,
			Currency:  offerCurrency,
			URL:       link,
			ImageURL:  image,
			Shipping:  shipping,
			Available: available,
		},
		kind:      item.kind,
		sourceURL: fromSource,
	}, true
}

// repairURL returns the offer URL when it is absolute http(s), otherwise a
// search-results URL for the platform. The bool reports whether the source
// URL was kept. An empty result means the offer has no usable link.
func repairURL(platform, raw, query string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if isAbsoluteHTTP(raw) {
		return raw, true
	}
	if tmpl, ok := templateFor(platform); ok && strings.TrimSpace(query) != "" {
		if synthesized := tmpl.build(query); isAbsoluteHTTP(synthesized) {
			return synthesized, false
		}
	}
	return "", false
}

func templateFor(platform string) (searchTemplate, bool) {
	key := strings.ReplaceAll(strings.ToLower(textnorm.Fold(platform)), " ", "")
	for _, tmpl := range searchTemplates {
		if strings.Contains(key, tmpl.key) {
			return tmpl, true
		}
	}
	return searchTemplate{}, false
}

func isAbsoluteHTTP(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CacheKey is the lower-cased, whitespace-collapsed query
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// localeCurrency returns the ISO code of the currency used in the region of
// locale ("es-PE" is PEN). Tags without an explicit region yield "".
func localeCurrency(locale string) string {
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	region, confidence := tag.Region()
	if confidence != language.Exact {
		return ""
	}
	unit, ok := currency.FromRegion(region)
	if !ok {
		return ""
	}
	return unit.String()
}
