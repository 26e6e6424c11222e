package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
)

const (
	serviceName    = "pricelens-backend"
	serviceVersion = "1.0.0"

	// maxImageBytes bounds the decoded photo of an identify request
	maxImageBytes = 5 << 20

	userIDHeader = "X-User-ID"
)

// PricingService is what the handlers need from the pipeline
type PricingService interface {
	IdentifyAndPrice(ctx context.Context, input domain.ResolveInput) (*domain.PriceResult, error)
	SearchByName(ctx context.Context, query string) ([]domain.Offer, error)
}

// CacheStats reports result cache usage
type CacheStats interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pricing        PricingService
	cache          CacheStats
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. cacheStats may be nil.
func NewHandler(pricing PricingService, cacheStats CacheStats, requestTimeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pricing:        pricing,
		cache:          cacheStats,
		requestTimeout: requestTimeout,
		logger:         logger.Named("handler"),
	}
}

// IdentifyRequest is the body of POST /products/identify
type IdentifyRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Barcode     string `json:"barcode"`
	Text        string `json:"text"`
}

// PriceResponse is returned by the identify and barcode endpoints
type PriceResponse struct {
	Status  string                   `json:"status"`
	Product domain.IdentifiedProduct `json:"product"`
	Offers  []domain.Offer           `json:"offers"`
	Count   int                      `json:"count"`
}

// SearchResponse is returned by the name search endpoint
type SearchResponse struct {
	Status string         `json:"status"`
	Query  string         `json:"query"`
	Offers []domain.Offer `json:"offers"`
	Count  int            `json:"count"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GetByBarcode identifies a product by barcode and prices it
func (h *Handler) GetByBarcode(c *gin.Context) {
	barcode := strings.TrimSpace(c.Param("barcode"))
	if !isBarcode(barcode) {
		h.writeError(c, domain.ErrInvalidRequest, "Barcode must be 8 to 14 digits")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.pricing.IdentifyAndPrice(ctx, domain.ResolveInput{
		Barcode: barcode,
		UserID:  c.GetHeader(userIDHeader),
	})
	h.writePriceResult(c, result, err)
}

// SearchProducts prices a free-text query without identification
func (h *Handler) SearchProducts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		h.writeError(c, domain.ErrInvalidRequest, "Query parameter 'query' is required")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	offers, err := h.pricing.SearchByName(ctx, query)
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrNoOffers):
		status = "no_offers"
	case err != nil:
		h.writeError(c, err, "")
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}

	c.JSON(http.StatusOK, SearchResponse{
		Status: status,
		Query:  query,
		Offers: offers,
		Count:  len(offers),
	})
}

// IdentifyProduct identifies a product from a photo, barcode or text and prices it
func (h *Handler) IdentifyProduct(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, domain.ErrInvalidRequest, "Invalid JSON body")
		return
	}

	input := domain.ResolveInput{
		Barcode:  strings.TrimSpace(req.Barcode),
		FreeText: strings.TrimSpace(req.Text),
		UserID:   c.GetHeader(userIDHeader),
	}
	if req.ImageBase64 != "" {
		image, err := decodeImage(req.ImageBase64)
		if err != nil {
			h.writeError(c, domain.ErrInvalidImage, err.Error())
			return
		}
		input.Image = image
	}
	if input.Barcode == "" && len(input.Image) == 0 && input.FreeText == "" {
		h.writeError(c, domain.ErrInvalidRequest, "Provide imageBase64, barcode or text")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.pricing.IdentifyAndPrice(ctx, input)
	h.writePriceResult(c, result, err)
}

// GetCacheStats reports result cache usage
func (h *Handler) GetCacheStats(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{"backend": "none"})
		return
	}
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.requestTimeout)
}

func (h *Handler) writePriceResult(c *gin.Context, result *domain.PriceResult, err error) {
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrNoOffers) && result != nil:
		status = "no_offers"
	case err != nil:
		h.writeError(c, err, "")
		return
	}

	offers := result.Offers
	if offers == nil {
		offers = []domain.Offer{}
	}
	c.JSON(http.StatusOK, PriceResponse{
		Status:  status,
		Product: result.Product,
		Offers:  offers,
		Count:   len(offers),
	})
}

// writeError maps domain errors to status codes. Internal details never reach the client.
func (h *Handler) writeError(c *gin.Context, err error, message string) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInvalidImage):
		status, code = http.StatusBadRequest, "invalid_image"
	case errors.Is(err, domain.ErrResolutionFailure), errors.Is(err, domain.ErrProductNotFound):
		status, code = http.StatusNotFound, "product_not_found"
		message = "The product could not be identified"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "rate_limited"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		message = "Something went wrong"
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	if message == "" {
		message = err.Error()
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}

func isBarcode(s string) bool {
	if len(s) < 8 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// decodeImage accepts raw base64 or a data URL
func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	encoded = strings.TrimSpace(encoded)

	if base64.StdEncoding.DecodedLen(len(encoded)) > maxImageBytes+3 {
		return nil, errors.New("image larger than 5MB")
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	if len(image) == 0 || len(image) > maxImageBytes {
		return nil, errors.New("image is empty or larger than 5MB")
	}
	return image, nil
}
