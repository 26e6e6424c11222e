package vtex

import (
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// maxResults caps how many products one store search contributes
const maxResults = 10

// product is one entry of the catalog_system search response
type product struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Brand       string `json:"brand"`
	Link        string `json:"link"`
	Items       []item `json:"items"`
}

type item struct {
	Images  []image  `json:"images"`
	Sellers []seller `json:"sellers"`
}

type image struct {
	ImageURL string `json:"imageUrl"`
}

type seller struct {
	CommertialOffer commertialOffer `json:"commertialOffer"`
}

type commertialOffer struct {
	Price             float64 `json:"Price"`
	ListPrice         float64 `json:"ListPrice"`
	AvailableQuantity int     `json:"AvailableQuantity"`
}

// mapProducts converts a VTEX search response into raw offers.
// Products without a seller offer or with no stock are skipped.
func mapProducts(store Store, products []product) []domain.RawOffer {
	offers := make([]domain.RawOffer, 0, min(len(products), maxResults))

	for _, p := range products {
		if len(offers) == maxResults {
			break
		}
		if len(p.Items) == 0 || len(p.Items[0].Sellers) == 0 {
			continue
		}
		co := p.Items[0].Sellers[0].CommertialOffer
		if co.AvailableQuantity <= 0 {
			continue
		}

		available := true
		raw := domain.RawOffer{
			SourceID:  store.ID,
			Platform:  store.Platform,
			Name:      strings.TrimSpace(p.ProductName),
			Price:     strconv.FormatFloat(co.Price, 'f', -1, 64),
			Currency:  store.Currency,
			URL:       resolveLink(store.BaseURL, p.Link),
			Shipping:  "0",
			Available: &available,
		}
		if len(p.Items[0].Images) > 0 {
			raw.ImageURL = p.Items[0].Images[0].ImageURL
		}
		offers = append(offers, raw)
	}

	return offers
}

// resolveLink makes a product link absolute against the store base URL.
// An empty link stays empty so a search URL can be synthesized later.
func resolveLink(baseURL, link string) string {
	link = strings.TrimSpace(link)
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case strings.HasPrefix(link, "/"):
		return strings.TrimRight(baseURL, "/") + link
	default:
		return strings.TrimRight(baseURL, "/") + "/" + link
	}
}
