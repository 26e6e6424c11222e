package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricelens/backend/internal/textnorm"
)

// card holds the raw text pulled out of one listing card
type card struct {
	Name  string
	Price string
	Link  string
	Image string
}

// Site describes how to search one store through its HTML listing
type Site struct {
	ID       string
	Platform string
	BaseURL  string
	Currency string
	// Keywords reduces a product name to the terms the store search handles
	// well. An empty result skips the search.
	Keywords func(name string) string
	// SearchURL builds the listing URL for keywords
	SearchURL func(keywords string) string
	// CardSelector matches one product card in the listing
	CardSelector string
	// ParseCard extracts fields from a matched card
	ParseCard func(s *goquery.Selection) card
	MaxItems  int
	Interval  time.Duration
	Jitter    time.Duration
}

var tottusStopWords = map[string]bool{
	"sin": true, "con": true, "pack": true, "unidad": true, "botella": true,
	"ml": true, "gr": true, "kg": true, "lt": true,
}

// tottusKeywords keeps at most three folded words longer than two letters,
// without digits or packaging words
func tottusKeywords(name string) string {
	var kept []string
	for _, w := range textnorm.Words(name) {
		w = strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return -1
			}
			return r
		}, w)
		if len(w) <= 2 || tottusStopWords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 3 {
			break
		}
	}
	out := strings.Join(kept, " ")
	if len(out) < 3 {
		return ""
	}
	return out
}

// Tottus is the Tottus supermarket listing. The store throttles aggressively,
// hence the long interval.
func Tottus() Site {
	base := "https://www.tottus.com.pe"
	return Site{
		ID:       "tottus",
		Platform: "Tottus",
		BaseURL:  base,
		Currency: "PEN",
		Keywords: tottusKeywords,
		SearchURL: func(keywords string) string {
			return base + "/buscar?q=" + url.PathEscape(keywords)
		},
		CardSelector: "a.pod-link",
		ParseCard: func(s *goquery.Selection) card {
			c := card{}
			bold := s.Find("b")
			if bold.Length() >= 2 {
				c.Name = bold.Eq(1).Text()
			} else {
				c.Name = bold.First().Text()
			}
			s.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
				if text := span.Text(); strings.Contains(text, "S/") {
					c.Price = text
					return false
				}
				return true
			})
			c.Link, _ = s.Attr("href")
			c.Image = imageSrc(s.Find("img").First())
			return c
		},
		MaxItems: 8,
		Interval: 6 * time.Second,
	}
}

// mercadoLibreKeywords keeps the first four folded words
func mercadoLibreKeywords(name string) string {
	words := textnorm.Words(name)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}

// MercadoLibreListing is the public Mercado Libre Peru listing, sorted by price
func MercadoLibreListing() Site {
	return Site{
		ID:       "mercadolibre_web",
		Platform: "Mercado Libre",
		BaseURL:  "https://listado.mercadolibre.com.pe",
		Currency: "PEN",
		Keywords: mercadoLibreKeywords,
		SearchURL: func(keywords string) string {
			return "https://listado.mercadolibre.com.pe/" + url.PathEscape(strings.ReplaceAll(keywords, " ", "-")) + "_Orden_price_asc"
		},
		CardSelector: "li.ui-search-layout__item",
		ParseCard: func(s *goquery.Selection) card {
			c := card{
				Name: s.Find(".ui-search-item__title, .poly-component__title").First().Text(),
			}
			amount := s.Find(".ui-search-price__second-line .andes-money-amount, .poly-price__current .andes-money-amount").First()
			if amount.Length() == 0 {
				amount = s.Find(".andes-money-amount").First()
			}
			// Fractions use '.' for thousands ("1.299") and cents live in their own node
			fraction := strings.ReplaceAll(strings.TrimSpace(amount.Find(".andes-money-amount__fraction").First().Text()), ".", "")
			if fraction != "" {
				c.Price = fraction
				if cents := strings.TrimSpace(amount.Find(".andes-money-amount__cents").First().Text()); cents != "" {
					c.Price += "." + cents
				}
			}
			c.Link, _ = s.Find("a.ui-search-link, a.poly-component__title, a").First().Attr("href")
			c.Image = imageSrc(s.Find("img").First())
			return c
		},
		MaxItems: 8,
		Interval: 3 * time.Second,
		Jitter:   2 * time.Second,
	}
}

// SiteByID returns a built-in site definition
func SiteByID(id string) (Site, bool) {
	switch id {
	case "tottus":
		return Tottus(), true
	case "mercadolibre", "mercadolibre_web":
		return MercadoLibreListing(), true
	}
	return Site{}, false
}

// imageSrc prefers lazy-load attributes over a placeholder src
func imageSrc(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "src", "data-lazy"} {
		if v, ok := img.Attr(attr); ok && v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}
