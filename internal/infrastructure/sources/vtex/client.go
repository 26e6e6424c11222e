// Package vtex searches supermarket catalogs hosted on the VTEX platform.
package vtex

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

// Store is one VTEX storefront
type Store struct {
	ID       string
	Platform string
	BaseURL  string
	Currency string
}

// Client queries the public catalog search of one store
type Client struct {
	store  Store
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a catalog client for store, limited to rps requests per second
func NewClient(store Store, rps float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := httpclient.New(store.ID, rps, logger)
	hc.SetHeader("Referer", strings.TrimRight(store.BaseURL, "/")+"/")
	hc.SetHeader("Origin", strings.TrimRight(store.BaseURL, "/"))

	return &Client{
		store:  store,
		http:   hc,
		logger: logger.With(zap.String("source", store.ID)),
	}
}

func (c *Client) ID() string { return c.store.ID }

func (c *Client) Kind() domain.SourceKind { return domain.KindCatalog }

// Search runs a full-text catalog search for name
func (c *Client) Search(ctx context.Context, name string) ([]domain.RawOffer, error) {
	reqURL := fmt.Sprintf("%s/api/catalog_system/pub/products/search/%s",
		strings.TrimRight(c.store.BaseURL, "/"), url.PathEscape(name))

	var products []product
	if err := c.http.GetJSON(ctx, reqURL, &products); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, nil
		}
		return nil, err
	}

	offers := mapProducts(c.store, products)
	c.logger.Debug("catalog search done",
		zap.String("query", name),
		zap.Int("products", len(products)),
		zap.Int("offers", len(offers)))
	return offers, nil
}
