package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

// MockRenderer is a mock implementation of browser.Renderer
type MockRenderer struct {
	mu   sync.Mutex
	html string
	err  error
	urls []string
}

func (m *MockRenderer) Render(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	return m.html, m.err
}

const tottusListing = `<html><body>
<div class="grid">
  <a class="pod-link" href="/leche-gloria-azul-1l/p">
    <b>GLORIA</b><b>Leche Evaporada Entera 400g</b>
    <img data-src="https://cdn.tottus.pe/1.jpg" src="data:image/gif;base64,AAAA">
    <span>Precio</span><span>S/ 4.20</span>
  </a>
  <a class="pod-link" href="https://www.tottus.com.pe/leche-light/p">
    <b>Leche Light</b>
    <span>S/ 5.10</span>
  </a>
  <a class="pod-link" href="/sin-precio/p">
    <b>Sin precio</b>
  </a>
</div>
</body></html>`

const jsonLDListing = `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
  {"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Arroz Costeño 5kg","url":"/arroz-costeno-5kg/p",
    "image":["https://cdn.example/arroz.jpg"],
    "offers":{"@type":"Offer","price":"21.90","priceCurrency":"PEN","availability":"https://schema.org/InStock"}}},
  {"@type":"ListItem","position":2,"item":{"@type":"Product","name":"Arroz Costeño 1kg",
    "offers":[{"@type":"AggregateOffer","lowPrice":4.5,"availability":"https://schema.org/OutOfStock"}]}}
]}
</script>
<script type="application/ld+json">{ broken json</script>
</head><body>
<a class="pod-link" href="/ignored/p"><b>Ignored card</b><span>S/ 1.00</span></a>
</body></html>`

func TestExtract_TottusCards(t *testing.T) {
	offers, err := Extract(Tottus(), tottusListing)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Leche Evaporada Entera 400g", offers[0].Name)
	assert.Equal(t, "S/ 4.20", offers[0].Price)
	assert.Equal(t, "https://www.tottus.com.pe/leche-gloria-azul-1l/p", offers[0].URL)
	assert.Equal(t, "https://cdn.tottus.pe/1.jpg", offers[0].ImageURL)
	assert.Equal(t, "Tottus", offers[0].Platform)
	assert.Equal(t, "PEN", offers[0].Currency)
	assert.Nil(t, offers[0].Available)

	assert.Equal(t, "Leche Light", offers[1].Name)
	assert.Equal(t, "https://www.tottus.com.pe/leche-light/p", offers[1].URL)
}

func TestExtract_PrefersJSONLD(t *testing.T) {
	offers, err := Extract(Tottus(), jsonLDListing)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Arroz Costeño 5kg", offers[0].Name)
	assert.Equal(t, "21.90", offers[0].Price)
	assert.Equal(t, "https://www.tottus.com.pe/arroz-costeno-5kg/p", offers[0].URL)
	assert.Equal(t, "https://cdn.example/arroz.jpg", offers[0].ImageURL)
	require.NotNil(t, offers[0].Available)
	assert.True(t, *offers[0].Available)

	assert.Equal(t, "4.5", offers[1].Price)
	require.NotNil(t, offers[1].Available)
	assert.False(t, *offers[1].Available)
	assert.Equal(t, "", offers[1].URL)
}

func TestExtract_MercadoLibreCards(t *testing.T) {
	html := `<ol>
	<li class="ui-search-layout__item">
	  <h2 class="ui-search-item__title">Café Altomayo Instantáneo 200g</h2>
	  <a class="ui-search-link" href="https://articulo.mercadolibre.com.pe/MPE-1"></a>
	  <div class="ui-search-price__second-line"><span class="andes-money-amount">
	    <span class="andes-money-amount__fraction">1.299</span><span class="andes-money-amount__cents">90</span>
	  </span></div>
	</li>
	<li class="ui-search-layout__item">
	  <a class="poly-component__title" href="https://articulo.mercadolibre.com.pe/MPE-2">Café Altomayo 50g</a>
	  <div class="poly-price__current"><span class="andes-money-amount"><span class="andes-money-amount__fraction">12</span></span></div>
	</li>
	</ol>`

	offers, err := Extract(MercadoLibreListing(), html)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Café Altomayo Instantáneo 200g", offers[0].Name)
	assert.Equal(t, "1299.90", offers[0].Price)
	assert.Equal(t, "https://articulo.mercadolibre.com.pe/MPE-1", offers[0].URL)

	assert.Equal(t, "Café Altomayo 50g", offers[1].Name)
	assert.Equal(t, "12", offers[1].Price)
}

func TestExtract_CapsItems(t *testing.T) {
	site := Tottus()
	site.MaxItems = 1

	offers, err := Extract(site, tottusListing)
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestTottusKeywords(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Leche Gloria Evaporada Entera 400g", "leche gloria evaporada"},
		{"Agua San Luis sin gas 625 ml", "agua san luis"},
		{"Azúcar Rubia Cartavio x 1 kg", "azucar rubia cartavio"},
		{"Té 25u", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tottusKeywords(tt.name))
		})
	}
}

func TestMercadoLibreKeywords(t *testing.T) {
	assert.Equal(t, "cafe altomayo instantaneo 200g", mercadoLibreKeywords("Café Altomayo Instantáneo 200g frasco"))
}

func TestSearchURLs(t *testing.T) {
	assert.Equal(t, "https://www.tottus.com.pe/buscar?q=leche%20gloria", Tottus().SearchURL("leche gloria"))
	assert.Equal(t, "https://listado.mercadolibre.com.pe/cafe-altomayo_Orden_price_asc", MercadoLibreListing().SearchURL("cafe altomayo"))
}

func TestSiteByID(t *testing.T) {
	site, ok := SiteByID("tottus")
	assert.True(t, ok)
	assert.Equal(t, 6*time.Second, site.Interval)

	site, ok = SiteByID("mercadolibre")
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, site.Interval)
	assert.Greater(t, site.Jitter, time.Duration(0))

	_, ok = SiteByID("unknown")
	assert.False(t, ok)
}

func TestAdapter_Search(t *testing.T) {
	renderer := &MockRenderer{html: tottusListing}
	adapter := NewAdapter(Tottus(), renderer, nil)

	assert.Equal(t, "tottus", adapter.ID())
	assert.Equal(t, domain.KindScraper, adapter.Kind())

	offers, err := adapter.Search(context.Background(), "Leche Gloria Evaporada 400g")
	require.NoError(t, err)
	assert.Len(t, offers, 2)
	assert.Equal(t, []string{"https://www.tottus.com.pe/buscar?q=leche%20gloria%20evaporada"}, renderer.urls)
}

func TestAdapter_SearchSkipsWithoutKeywords(t *testing.T) {
	renderer := &MockRenderer{html: tottusListing}
	adapter := NewAdapter(Tottus(), renderer, nil)

	offers, err := adapter.Search(context.Background(), "Té 25u")
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Empty(t, renderer.urls, "no page should be rendered")
}

func TestAdapter_SearchPropagatesRenderError(t *testing.T) {
	renderer := &MockRenderer{err: domain.ErrSourceTimeout}
	adapter := NewAdapter(Tottus(), renderer, nil)

	_, err := adapter.Search(context.Background(), "Leche Gloria")
	assert.True(t, errors.Is(err, domain.ErrSourceTimeout))
}

func TestAdapter_PolitenessRespectsContext(t *testing.T) {
	renderer := &MockRenderer{html: tottusListing}
	site := Tottus()
	site.Interval = time.Hour
	adapter := NewAdapter(site, renderer, nil)

	_, err := adapter.Search(context.Background(), "Leche Gloria")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = adapter.Search(ctx, "Leche Gloria")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, renderer.urls, 1)
}
