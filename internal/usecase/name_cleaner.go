package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/textnorm"
)

// maxTextWords is how many non-numeric words a cleaned name keeps
const maxTextWords = 4

var (
	// "500ml" -> "500 ml", "1.5l" -> "1.5 l"
	gluedUnitPattern = regexp.MustCompile(`(\d)([a-z]+)`)
	hasDigitPattern  = regexp.MustCompile(`\d`)
)

// nameStopWords add nothing to a store search
var nameStopWords = map[string]bool{
	// connectors
	"sin": true, "con": true, "x": true, "y": true, "de": true, "del": true,
	"la": true, "el": true, "los": true, "las": true,

	// packaging
	"pack": true, "unidad": true, "unidades": true, "botella": true, "lata": true,
	"envase": true, "frasco": true, "bolsa": true, "caja": true, "paquete": true,
	"plastico": true, "vidrio": true, "retornable": true, "descartable": true,

	// marketing
	"oferta": true, "precio": true, "gratis": true, "sabor": true, "natural": true,
	"artificial": true, "original": true, "neto": true, "contenido": true, "gas": true,
}

var unitWords = map[string]bool{
	"ml": true, "l": true, "kg": true, "g": true, "oz": true, "gr": true, "lt": true, "cc": true,
}

// NameCleaner turns noisy product titles into short search queries
type NameCleaner struct {
	logger *zap.Logger
}

// NewNameCleaner creates a new name cleaner
func NewNameCleaner(logger *zap.Logger) *NameCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NameCleaner{logger: logger.Named("cleaner")}
}

// Clean lower-cases and folds name, drops symbols and stop words, puts the
// brand first and keeps at most four text words plus every number and unit.
// The result is title-cased: "Leche GLORIA Evaporada Entera x 400g", "Gloria"
// becomes "Gloria Leche Evaporada Entera 400 G".
func (c *NameCleaner) Clean(name, brand string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}

	text := strings.ToLower(textnorm.Fold(name))
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			return r
		}
		return ' '
	}, text)
	text = gluedUnitPattern.ReplaceAllString(text, "$1 $2")

	var words []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".")
		if w == "" || nameStopWords[w] {
			continue
		}
		if len([]rune(w)) < 2 && !isNumber(w) && !unitWords[w] {
			continue
		}
		words = append(words, w)
	}

	if brand = strings.ToLower(textnorm.Fold(strings.TrimSpace(brand))); brand != "" {
		brandWords := make(map[string]bool)
		for _, bw := range strings.Fields(brand) {
			brandWords[bw] = true
		}
		kept := []string{brand}
		for _, w := range words {
			if !brandWords[w] {
				kept = append(kept, w)
			}
		}
		words = kept
	}

	var final []string
	textWords := 0
	for _, w := range words {
		numeric := hasDigitPattern.MatchString(w) || unitWords[w]
		if numeric {
			final = append(final, w)
			continue
		}
		if textWords < maxTextWords {
			final = append(final, w)
			textWords++
		}
	}

	cleaned := textnorm.Title(strings.Join(final, " "))
	c.logger.Debug("name cleaned", zap.String("input", name), zap.String("output", cleaned))
	return cleaned
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return s != ""
}
