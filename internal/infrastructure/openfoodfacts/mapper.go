package openfoodfacts

import (
	"strings"
	"unicode"

	"github.com/pricelens/backend/internal/domain"
)

// maxSearchWords caps the length of the search-friendly name
const maxSearchWords = 6

// categoryKeywords maps Open Food Facts category text to store aisles.
// Order matters: the first keyword found wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"yogurt", "Lácteos"},
	{"yoghurt", "Lácteos"},
	{"leche", "Lácteos"},
	{"milk", "Lácteos"},
	{"queso", "Lácteos"},
	{"mantequilla", "Lácteos"},
	{"agua", "Bebidas"},
	{"gaseosa", "Bebidas"},
	{"jugo", "Bebidas"},
	{"refresco", "Bebidas"},
	{"beverage", "Bebidas"},
	{"cerveza", "Bebidas"},
	{"vino", "Bebidas"},
	{"arroz", "Abarrotes"},
	{"rice", "Abarrotes"},
	{"fideo", "Abarrotes"},
	{"pasta dental", "Higiene Personal"},
	{"pasta", "Abarrotes"},
	{"aceite", "Abarrotes"},
	{"conserva", "Abarrotes"},
	{"galleta", "Snacks"},
	{"biscuit", "Snacks"},
	{"chocolate", "Snacks"},
	{"dulce", "Snacks"},
	{"caramelo", "Snacks"},
	{"snack", "Snacks"},
	{"shampoo", "Higiene Personal"},
	{"jabón", "Higiene Personal"},
	{"detergente", "Limpieza"},
	{"lejía", "Limpieza"},
	{"limpiador", "Limpieza"},
}

// MapToCatalogProduct converts an Open Food Facts record into a catalog product
func MapToCatalogProduct(barcode string, p *Product) *domain.CatalogProduct {
	original := bestName(p)
	brand := mainBrand(p, original)
	quantity := strings.TrimSpace(p.Quantity)

	image := p.ImageURL
	if image == "" {
		image = p.ImageFrontURL
	}

	return &domain.CatalogProduct{
		Barcode:      barcode,
		Name:         buildSearchName(original, brand, quantity),
		OriginalName: original,
		Brand:        brand,
		Quantity:     quantity,
		Category:     category(p.Categories),
		ImageURL:     image,
	}
}

// bestName prefers the Spanish name, then the generic ones
func bestName(p *Product) string {
	for _, name := range []string{
		p.ProductNameES,
		p.ProductName,
		p.ProductNameEN,
		p.GenericNameES,
		p.GenericName,
		p.Brands,
	} {
		if name = strings.TrimSpace(name); len([]rune(name)) > 3 {
			return name
		}
	}
	return ""
}

// mainBrand takes the first listed brand, then an all-caps word of the name,
// then the name's first word.
func mainBrand(p *Product, name string) string {
	if first, _, _ := strings.Cut(p.Brands, ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}

	words := strings.Fields(name)
	for _, w := range words {
		if len(w) > 2 && isUpperASCII(w) {
			return w
		}
	}
	if len(words) > 0 && len([]rune(words[0])) > 2 {
		r := []rune(strings.ToLower(words[0]))
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}
	return ""
}

func isUpperASCII(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// buildSearchName puts the brand first, appends a compact quantity when the
// name lacks it, strips symbols and keeps at most six words.
func buildSearchName(name, brand, quantity string) string {
	out := name
	lower := strings.ToLower(out)
	if brand != "" && !strings.Contains(lower, strings.ToLower(brand)) {
		out = brand + " " + out
	}
	if quantity != "" && !strings.Contains(strings.ToLower(out), strings.ToLower(quantity)) {
		out = out + " " + strings.ToLower(strings.Join(strings.Fields(quantity), ""))
	}

	out = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			return r
		}
		return ' '
	}, out)

	words := strings.Fields(out)
	if len(words) > maxSearchWords {
		words = words[:maxSearchWords]
	}
	return strings.Join(words, " ")
}

func category(categories string) string {
	lower := strings.ToLower(categories)
	for _, c := range categoryKeywords {
		if strings.Contains(lower, c.keyword) {
			return c.category
		}
	}
	return "General"
}
