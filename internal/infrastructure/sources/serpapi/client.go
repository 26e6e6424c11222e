// Package serpapi talks to the SerpApi search proxy: Google Shopping for
// prices and plain Google search for product-name lookups.
package serpapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/httpclient"
)

// Options configures the client
type Options struct {
	APIKey   string
	BaseURL  string
	Location string
	Country  string // gl
	Language string // hl
	// FlatShipping is applied when a result names a delivery cost that is not free
	FlatShipping string
	RPS          float64
}

// Client is a SerpApi client
type Client struct {
	opts   Options
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a new SerpApi client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://serpapi.com"
	}
	if opts.FlatShipping == "" {
		opts.FlatShipping = "5.99"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		http:   httpclient.New("serpapi", opts.RPS, logger),
		logger: logger.With(zap.String("source", "serpapi")),
	}
}

func (c *Client) search(ctx context.Context, engine, query string, out any) error {
	params := url.Values{}
	params.Set("engine", engine)
	params.Set("q", query)
	params.Set("api_key", c.opts.APIKey)
	if c.opts.Location != "" {
		params.Set("location", c.opts.Location)
	}
	if c.opts.Country != "" {
		params.Set("gl", c.opts.Country)
	}
	if c.opts.Language != "" {
		params.Set("hl", c.opts.Language)
	}

	reqURL := fmt.Sprintf("%s/search.json?%s", strings.TrimRight(c.opts.BaseURL, "/"), params.Encode())
	if err := c.http.GetJSON(ctx, reqURL, out); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return fmt.Errorf("%w: serpapi endpoint not found", domain.ErrSourceFailure)
		}
		return err
	}
	return nil
}
