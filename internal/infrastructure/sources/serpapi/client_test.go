package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{APIKey: "test-key", BaseURL: server.URL, Country: "pe", Language: "es"}, nil)
}

func TestShopping_Search_CheapestPerPlatform(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_shopping", r.URL.Query().Get("engine"))
		assert.Equal(t, "Leche Gloria 1L", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "pe", r.URL.Query().Get("gl"))
		w.Write([]byte(`{"shopping_results": [
			{"title": "Leche Gloria 1L", "source": "Tottus", "link": "https://tottus.pe/a", "extracted_price": 5.1, "delivery": "Free delivery"},
			{"title": "Leche Gloria 1L pack", "source": "Tottus", "link": "https://tottus.pe/b", "extracted_price": 4.6},
			{"title": "Leche Gloria", "source": "Mercado Libre", "link": "https://mercadolibre.pe/c", "price": "S/ 6,20", "delivery": "S/ 9 delivery"},
			{"title": "Sin precio", "source": "Rappi", "link": "https://rappi.pe/d", "price": "Consultar"}
		]}`))
	})

	shopping := NewShopping(client)
	assert.Equal(t, domain.KindMarketSearch, shopping.Kind())
	assert.Equal(t, "google_shopping", shopping.ID())

	offers, err := shopping.Search(context.Background(), "Leche Gloria 1L")
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Tottus", offers[0].Platform)
	assert.Equal(t, "4.6", offers[0].Price)
	assert.Equal(t, "https://tottus.pe/b", offers[0].URL)
	assert.Equal(t, "", offers[0].Shipping, "no delivery text leaves shipping unknown")

	assert.Equal(t, "Mercado Libre", offers[1].Platform)
	assert.Equal(t, "S/ 6,20", offers[1].Price)
	assert.Equal(t, "5.99", offers[1].Shipping)
}

func TestShopping_Search_NoResultsIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	})

	offers, err := NewShopping(client).Search(context.Background(), "xyz")
	assert.NoError(t, err)
	assert.Empty(t, offers)
}

func TestShopping_Search_APIErrorFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Invalid API key."}`))
	})

	_, err := NewShopping(client).Search(context.Background(), "leche")
	assert.ErrorIs(t, err, domain.ErrSourceFailure)
}

func TestShippingFor(t *testing.T) {
	s := NewShopping(NewClient(Options{FlatShipping: "7"}, nil))

	assert.Equal(t, "", s.shippingFor(""))
	assert.Equal(t, "0", s.shippingFor("Free delivery"))
	assert.Equal(t, "0", s.shippingFor("Envío gratis"))
	assert.Equal(t, "7", s.shippingFor("S/ 10 delivery"))
}

func TestCheapestPerPlatform_KeepsFirstAppearanceOrder(t *testing.T) {
	in := []domain.RawOffer{
		{Platform: "B", Price: "3"},
		{Platform: "A", Price: "2"},
		{Platform: "b", Price: "1"},
	}

	out := cheapestPerPlatform(in)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Platform)
	assert.Equal(t, "1", out[0].Price)
	assert.Equal(t, "A", out[1].Platform)
}

func TestTopResultName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "7751271001234", r.URL.Query().Get("q"))
		w.Write([]byte(`{"organic_results": [
			{"position": 1, "title": "  ", "link": "https://a"},
			{"position": 2, "title": "Galletas Soda Field 6 pack", "link": "https://b"}
		]}`))
	})

	name, err := client.TopResultName(context.Background(), "7751271001234")
	require.NoError(t, err)
	assert.Equal(t, "Galletas Soda Field 6 pack", name)
}

func TestTopResultName_NoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic_results": []}`))
	})

	_, err := client.TopResultName(context.Background(), "000")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
