package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricelens/backend/internal/domain"
)

// Extract pulls offers out of a rendered listing page. Structured JSON-LD
// Product data wins; per-site card selectors are the fallback.
func Extract(site Site, html string) ([]domain.RawOffer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrSourceFailure, err)
	}

	offers := extractJSONLD(site, doc)
	if len(offers) == 0 {
		offers = extractCards(site, doc)
	}

	if site.MaxItems > 0 && len(offers) > site.MaxItems {
		offers = offers[:site.MaxItems]
	}
	return offers, nil
}

func extractCards(site Site, doc *goquery.Document) []domain.RawOffer {
	if site.CardSelector == "" || site.ParseCard == nil {
		return nil
	}

	var offers []domain.RawOffer
	doc.Find(site.CardSelector).Each(func(_ int, s *goquery.Selection) {
		c := site.ParseCard(s)
		name := strings.Join(strings.Fields(c.Name), " ")
		if name == "" || strings.TrimSpace(c.Price) == "" {
			return
		}
		offers = append(offers, domain.RawOffer{
			SourceID: site.ID,
			Platform: site.Platform,
			Name:     name,
			Price:    strings.TrimSpace(c.Price),
			Currency: site.Currency,
			URL:      absolute(site.BaseURL, c.Link),
			ImageURL: absolute(site.BaseURL, c.Image),
		})
	})
	return offers
}

func extractJSONLD(site Site, doc *goquery.Document) []domain.RawOffer {
	var offers []domain.RawOffer
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var node any
		if err := json.Unmarshal([]byte(s.Text()), &node); err != nil {
			return
		}
		walkLD(node, func(product map[string]any) {
			if o, ok := productOffer(site, product); ok {
				offers = append(offers, o)
			}
		})
	})
	return offers
}

// walkLD visits every schema.org Product in a JSON-LD tree, including those
// nested in @graph arrays and ItemList elements.
func walkLD(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case []any:
		for _, child := range v {
			walkLD(child, visit)
		}
	case map[string]any:
		if hasType(v, "Product") {
			visit(v)
			return
		}
		for _, key := range []string{"@graph", "itemListElement", "item", "mainEntity"} {
			if child, ok := v[key]; ok {
				walkLD(child, visit)
			}
		}
	}
}

func hasType(m map[string]any, want string) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func productOffer(site Site, p map[string]any) (domain.RawOffer, bool) {
	name := strings.TrimSpace(str(p["name"]))
	if name == "" {
		return domain.RawOffer{}, false
	}

	raw := domain.RawOffer{
		SourceID: site.ID,
		Platform: site.Platform,
		Name:     name,
		Currency: site.Currency,
		URL:      absolute(site.BaseURL, str(p["url"])),
		ImageURL: absolute(site.BaseURL, firstString(p["image"])),
	}

	offer := firstObject(p["offers"])
	if offer == nil {
		return domain.RawOffer{}, false
	}
	price := str(offer["price"])
	if price == "" {
		price = str(offer["lowPrice"])
	}
	if price == "" {
		return domain.RawOffer{}, false
	}
	raw.Price = price
	if c := str(offer["priceCurrency"]); c != "" {
		raw.Currency = c
	}
	if raw.URL == "" {
		raw.URL = absolute(site.BaseURL, str(offer["url"]))
	}
	if availability := str(offer["availability"]); availability != "" {
		inStock := !strings.Contains(availability, "OutOfStock") && !strings.Contains(availability, "SoldOut")
		raw.Available = &inStock
	}
	return raw, true
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, x := range t {
			if s := firstString(x); s != "" {
				return s
			}
		}
	case map[string]any:
		return str(t["url"])
	}
	return ""
}

func firstObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, x := range t {
			if m, ok := x.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// absolute resolves ref against base; unparseable refs are returned as-is for
// the normalizer to judge
func absolute(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
