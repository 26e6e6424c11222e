package serpapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

const shoppingSourceID = "google_shopping"

type shoppingResponse struct {
	Error           string           `json:"error"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
}

type shoppingResult struct {
	ProductID      string   `json:"product_id"`
	Title          string   `json:"title"`
	Source         string   `json:"source"`
	Link           string   `json:"link"`
	ProductLink    string   `json:"product_link"`
	Price          string   `json:"price"`
	ExtractedPrice *float64 `json:"extracted_price"`
	Delivery       string   `json:"delivery"`
	Thumbnail      string   `json:"thumbnail"`
}

// Shopping is the Google Shopping price source
type Shopping struct {
	client *Client
}

// NewShopping wraps client as a price source
func NewShopping(client *Client) *Shopping {
	return &Shopping{client: client}
}

func (s *Shopping) ID() string { return shoppingSourceID }

func (s *Shopping) Kind() domain.SourceKind { return domain.KindMarketSearch }

// Search queries Google Shopping and keeps the cheapest result per store
func (s *Shopping) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	var resp shoppingResponse
	if err := s.client.search(ctx, "google_shopping", name, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		// "Google hasn't returned any results" comes back as an error string
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: serpapi: %s", domain.ErrSourceFailure, resp.Error)
	}

	raw := make([]domain.RawOffer, 0, len(resp.ShoppingResults))
	for _, r := range resp.ShoppingResults {
		raw = append(raw, s.mapResult(r))
	}

	offers := cheapestPerPlatform(raw)
	s.client.logger.Debug("shopping search done",
		zap.String("query", name),
		zap.Int("results", len(resp.ShoppingResults)),
		zap.Int("platforms", len(offers)))
	return offers, nil
}

func (s *Shopping) mapResult(r shoppingResult) domain.RawOffer {
	price := r.Price
	if r.ExtractedPrice != nil {
		price = strconv.FormatFloat(*r.ExtractedPrice, 'f', -1, 64)
	}

	platform := strings.TrimSpace(r.Source)
	if platform == "" {
		platform = "Google Shopping"
	}

	link := r.Link
	if link == "" {
		link = r.ProductLink
	}

	return domain.RawOffer{
		SourceID: shoppingSourceID,
		Platform: platform,
		Name:     strings.TrimSpace(r.Title),
		Price:    price,
		URL:      link,
		ImageURL: r.Thumbnail,
		Shipping: s.shippingFor(r.Delivery),
	}
}

// shippingFor reads the delivery blurb: free means 0, any other text means
// the flat rate, and no text leaves shipping unknown.
func (s *Shopping) shippingFor(delivery string) string {
	d := strings.ToLower(strings.TrimSpace(delivery))
	switch {
	case d == "":
		return ""
	case strings.Contains(d, "free"), strings.Contains(d, "gratis"):
		return "0"
	default:
		return s.client.opts.FlatShipping
	}
}

// cheapestPerPlatform keeps the lowest-priced offer of each platform, in order
// of first appearance. Offers whose price cannot be read are dropped.
func cheapestPerPlatform(offers []domain.RawOffer) []domain.RawOffer {
	type best struct {
		offer domain.RawOffer
		price decimal.Decimal
	}
	order := []string{}
	byPlatform := map[string]best{}

	for _, o := range offers {
		price, err := domain.ParsePrice(o.Price)
		if err != nil {
			continue
		}
		key := strings.ToLower(o.Platform)
		cur, seen := byPlatform[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || price.LessThan(cur.price) {
			byPlatform[key] = best{offer: o, price: price}
		}
	}

	out := make([]domain.RawOffer, 0, len(order))
	for _, key := range order {
		out = append(out, byPlatform[key].offer)
	}
	return out
}
