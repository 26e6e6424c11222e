// Package openfoodfacts resolves barcodes against the Open Food Facts database.
package openfoodfacts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/httpclient"
)

// Product is the subset of an Open Food Facts product record we read
type Product struct {
	Code          string `json:"code"`
	ProductName   string `json:"product_name"`
	ProductNameES string `json:"product_name_es"`
	ProductNameEN string `json:"product_name_en"`
	GenericName   string `json:"generic_name"`
	GenericNameES string `json:"generic_name_es"`
	Brands        string `json:"brands"`
	Quantity      string `json:"quantity"`
	Categories    string `json:"categories"`
	ImageURL      string `json:"image_url"`
	ImageFrontURL string `json:"image_front_url"`
}

type productResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

// Client looks products up by barcode
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *zap.Logger
}

// NewClient creates a new Open Food Facts client
func NewClient(baseURL string, rps float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New("openfoodfacts", rps, logger),
		logger:  logger.With(zap.String("catalog", "openfoodfacts")),
	}
}

// LookupByBarcode returns domain.ErrProductNotFound when the barcode is unknown
func (c *Client) LookupByBarcode(ctx context.Context, barcode string) (*domain.CatalogProduct, error) {
	reqURL := fmt.Sprintf("%s/product/%s.json", c.baseURL, barcode)

	var resp productResponse
	if err := c.http.GetJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 1 || resp.Product == nil {
		return nil, domain.ErrProductNotFound
	}

	product := MapToCatalogProduct(barcode, resp.Product)
	if product.Name == "" {
		return nil, domain.ErrProductNotFound
	}

	c.logger.Debug("barcode resolved",
		zap.String("barcode", barcode),
		zap.String("original", product.OriginalName),
		zap.String("search_name", product.Name))
	return product, nil
}
