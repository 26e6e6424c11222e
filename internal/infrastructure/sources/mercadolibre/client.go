// Package mercadolibre searches the public Mercado Libre items API.
package mercadolibre

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/httpclient"
)

const (
	sourceID   = "mercadolibre_api"
	platform   = "Mercado Libre"
	maxResults = 8
)

type searchResponse struct {
	Results []result `json:"results"`
}

type result struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Price             *float64 `json:"price"`
	CurrencyID        string   `json:"currency_id"`
	Permalink         string   `json:"permalink"`
	Thumbnail         string   `json:"thumbnail"`
	AvailableQuantity *int     `json:"available_quantity"`
	Shipping          struct {
		FreeShipping bool `json:"free_shipping"`
	} `json:"shipping"`
}

// Client searches one Mercado Libre site, e.g. MPE for Peru
type Client struct {
	baseURL string
	siteID  string
	http    *httpclient.Client
	logger  *zap.Logger
}

// NewClient creates a new Mercado Libre API client
func NewClient(baseURL, siteID string, rps float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		siteID:  siteID,
		http:    httpclient.New(sourceID, rps, logger),
		logger:  logger.With(zap.String("source", sourceID)),
	}
}

func (c *Client) ID() string { return sourceID }

// Kind is market search: the API matches loosely and returns accessories and bundles
func (c *Client) Kind() domain.SourceKind { return domain.KindMarketSearch }

// Search lists the cheapest matching items
func (c *Client) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("sort", "price_asc")
	params.Set("limit", strconv.Itoa(maxResults))
	reqURL := fmt.Sprintf("%s/sites/%s/search?%s", c.baseURL, url.PathEscape(c.siteID), params.Encode())

	var resp searchResponse
	if err := c.http.GetJSON(ctx, reqURL, &resp); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, nil
		}
		return nil, err
	}

	offers := make([]domain.RawOffer, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(offers) == maxResults {
			break
		}
		offers = append(offers, mapResult(r))
	}

	c.logger.Debug("api search done", zap.String("query", name), zap.Int("offers", len(offers)))
	return offers, nil
}

func mapResult(r result) domain.RawOffer {
	raw := domain.RawOffer{
		SourceID: sourceID,
		Platform: platform,
		Name:     strings.TrimSpace(r.Title),
		Currency: r.CurrencyID,
		URL:      r.Permalink,
		ImageURL: r.Thumbnail,
	}
	if r.Price != nil {
		raw.Price = strconv.FormatFloat(*r.Price, 'f', -1, 64)
	} else {
		raw.PriceOnRequest = true
	}
	if r.Shipping.FreeShipping {
		raw.Shipping = "0"
	}
	if r.AvailableQuantity != nil {
		available := *r.AvailableQuantity > 0
		raw.Available = &available
	}
	return raw
}
