package mercadolibre

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/MPE/search", r.URL.Path)
		assert.Equal(t, "arroz costeño 5kg", r.URL.Query().Get("q"))
		assert.Equal(t, "price_asc", r.URL.Query().Get("sort"))
		w.Write([]byte(`{"results": [
			{"id": "MPE1", "title": "Arroz Costeño 5kg", "price": 21.9, "currency_id": "PEN",
			 "permalink": "https://articulo.mercadolibre.com.pe/MPE-1", "thumbnail": "http://img/1.jpg",
			 "available_quantity": 4, "shipping": {"free_shipping": true}},
			{"id": "MPE2", "title": "Arroz Costeño 5kg x2", "price": null, "currency_id": "PEN",
			 "permalink": "https://articulo.mercadolibre.com.pe/MPE-2"},
			{"id": "MPE3", "title": "Arroz agotado", "price": 20, "currency_id": "PEN",
			 "permalink": "https://articulo.mercadolibre.com.pe/MPE-3", "available_quantity": 0}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "MPE", 0, nil)
	assert.Equal(t, domain.KindMarketSearch, client.Kind())

	offers, err := client.Search(context.Background(), "arroz costeño 5kg")
	require.NoError(t, err)
	require.Len(t, offers, 3)

	first := offers[0]
	assert.Equal(t, "Mercado Libre", first.Platform)
	assert.Equal(t, "21.9", first.Price)
	assert.Equal(t, "PEN", first.Currency)
	assert.Equal(t, "0", first.Shipping)
	require.NotNil(t, first.Available)
	assert.True(t, *first.Available)

	assert.True(t, offers[1].PriceOnRequest)
	assert.Nil(t, offers[1].Available)
	assert.Equal(t, "", offers[1].Shipping)

	require.NotNil(t, offers[2].Available)
	assert.False(t, *offers[2].Available)
}

func TestSearch_ServerErrorFails(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through retry backoff")
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, "MPE", 0, nil)
	_, err := client.Search(context.Background(), "arroz")
	assert.ErrorIs(t, err, domain.ErrSourceFailure)
}
