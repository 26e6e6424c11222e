package browser

import "math/rand/v2"

// Fingerprint is the identifying surface presented by one browsing session
type Fingerprint struct {
	Width          int
	Height         int
	UserAgent      string
	AcceptLanguage string
}

var viewports = [][2]int{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
	{1280, 800},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"es-PE,es;q=0.9,en;q=0.8",
	"es-419,es;q=0.9",
	"es-ES,es;q=0.9,en-US;q=0.7,en;q=0.6",
}

// NewFingerprint picks a viewport and header set. Viewport sizes are
// perturbed by a few pixels so no two sessions look exactly alike.
func NewFingerprint(r *rand.Rand) Fingerprint {
	vp := viewports[r.IntN(len(viewports))]
	return Fingerprint{
		Width:          vp[0] - r.IntN(24),
		Height:         vp[1] - r.IntN(24),
		UserAgent:      userAgents[r.IntN(len(userAgents))],
		AcceptLanguage: acceptLanguages[r.IntN(len(acceptLanguages))],
	}
}
