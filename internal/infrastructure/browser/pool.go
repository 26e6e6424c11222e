// Package browser renders JavaScript-heavy store pages through a shared
// headless Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/pricelens/backend/internal/domain"
)

// Renderer returns the HTML of a page after client-side rendering
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Options configures the browser pool
type Options struct {
	Headless bool
	// Bin is the Chrome binary; empty lets rod download or find one
	Bin string
	// PageBudget is the hard wall-clock limit for one page load
	PageBudget time.Duration
	// Settle is how long the DOM must stay unchanged before reading it
	Settle time.Duration
}

// Pool owns one lazily launched browser. Every Render call gets its own
// incognito context with a fresh fingerprint.
type Pool struct {
	opts    Options
	logger  *zap.Logger
	mu      sync.Mutex
	browser *rod.Browser
	rng     *rand.Rand
}

// NewPool creates a pool; Chrome is not started until the first Render
func NewPool(opts Options, logger *zap.Logger) *Pool {
	if opts.PageBudget <= 0 {
		opts.PageBudget = 30 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 800 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

func (p *Pool) ensureStarted() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			return p.browser, nil
		}
		p.logger.Warn("stale browser connection, relaunching")
		_ = p.browser.Close()
		p.browser = nil
	}

	l := launcher.New().Headless(p.opts.Headless)
	if p.opts.Bin != "" {
		l = l.Bin(p.opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p.logger.Info("browser started", zap.Bool("headless", p.opts.Headless))
	p.browser = b
	return b, nil
}

func (p *Pool) nextFingerprint() Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewFingerprint(p.rng)
}

// Render loads url in a fresh incognito page and returns its HTML. The page
// load is bounded by PageBudget; when it is exceeded the error wraps
// domain.ErrSourceTimeout.
func (p *Pool) Render(ctx context.Context, url string) (string, error) {
	b, err := p.ensureStarted()
	if err != nil {
		return "", err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return "", fmt.Errorf("incognito context: %w", err)
	}
	defer incognito.Close()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	fp := p.nextFingerprint()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             fp.Width,
		Height:            fp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		p.logger.Debug("set viewport failed", zap.Error(err))
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: fp.AcceptLanguage,
	}); err != nil {
		p.logger.Debug("set user agent failed", zap.Error(err))
	}

	budgeted := page.Context(ctx).Timeout(p.opts.PageBudget)
	if err := budgeted.Navigate(url); err != nil {
		return "", p.wrapLoadErr(ctx, url, err)
	}
	if err := budgeted.WaitLoad(); err != nil {
		return "", p.wrapLoadErr(ctx, url, err)
	}
	// Listing grids are filled in by XHR after load
	_ = budgeted.WaitStable(p.opts.Settle)

	html, err := budgeted.HTML()
	if err != nil {
		return "", p.wrapLoadErr(ctx, url, err)
	}
	return html, nil
}

func (p *Pool) wrapLoadErr(ctx context.Context, url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: page %s exceeded %s", domain.ErrSourceTimeout, url, p.opts.PageBudget)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: load %s: %v", domain.ErrSourceFailure, url, err)
}

// Close shuts the browser down if it was started
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}
