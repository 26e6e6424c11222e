package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func TestNew(t *testing.T) {
	client := New("vtex", 2, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "vtex", client.name)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestSetDebug(t *testing.T) {
	client := New("vtex", 0, nil)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestGetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PriceLens/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Leche Gloria","price":4.5}`))
	}))
	defer server.Close()

	client := New("test", 0, nil)
	client.SetHeader("X-Api-Key", "secret")

	var out struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "Leche Gloria", out.Name)
	assert.Equal(t, 4.5, out.Price)
}

func TestGetJSON_NotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New("test", 0, nil)
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 should not be retried")
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New("test", 0, nil)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_ServerErrorExhaustsRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through backoff")
	}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New("test", 0, nil)
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)

	assert.ErrorIs(t, err, domain.ErrSourceFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := New("test", 0, nil)
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)

	assert.ErrorIs(t, err, domain.ErrSourceFailure)
}

func TestGetJSON_DeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New("test", 0, nil)
	var out map[string]any
	err := client.GetJSON(ctx, server.URL, &out)

	assert.ErrorIs(t, err, domain.ErrSourceTimeout)
}
