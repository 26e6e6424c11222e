package domain

import "errors"

var (
	// ErrProductNotFound is returned when a catalog has no record for a barcode
	ErrProductNotFound = errors.New("product not found")

	// ErrLowConfidence is returned when an identification is too uncertain to price
	ErrLowConfidence = errors.New("identification confidence too low")

	// ErrResolutionFailure is returned when no identification step produced a name
	ErrResolutionFailure = errors.New("product could not be identified")

	// ErrNoOffers is returned alongside a product when every source came back empty
	ErrNoOffers = errors.New("no offers found")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrSourceFailure wraps transport and decoding errors from a price source
	ErrSourceFailure = errors.New("price source request failed")

	// ErrSourceTimeout is returned when a price source exceeds its time budget
	ErrSourceTimeout = errors.New("price source timed out")

	// ErrInvalidPrice is returned when a price string has no positive number in it
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidImage is returned when image bytes are empty, too large, or not an image
	ErrInvalidImage = errors.New("invalid image")

	// ErrVisionFailure is returned when the vision service call fails
	ErrVisionFailure = errors.New("vision identification failed")
)
