package rasterize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrUnavailable is returned when no browser is connected, either because
// Start was never called, launch failed, or the manager was closed.
var ErrUnavailable = errors.New("rasterize: browser unavailable")

// ChromeConfig configures the Chrome-backed rasterizer.
type ChromeConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// MemoryLimit in bytes. Recycle Chrome when exceeded. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	// NavigateTimeout bounds loading the capture document. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *ChromeConfig) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30 // 1GB
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome is a Rasterizer backed by a managed headless Chrome. It owns the
// browser lifecycle: launch, recycle on memory or age, shutdown.
type Chrome struct {
	cfg     ChromeConfig
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// NewChrome creates a Chrome rasterizer. Call Start to launch the browser.
func NewChrome(cfg ChromeConfig) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance) and starts the
// recycle monitor. The monitor stops when ctx is cancelled.
func (c *Chrome) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("rasterize: manager is closed")
	}

	b, err := c.launch()
	if err != nil {
		return err
	}
	c.browser = b
	c.startAt = time.Now()

	go c.monitorLoop(ctx)

	return nil
}

// Available reports whether a browser connection is live.
func (c *Chrome) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.browser != nil && !c.closed
}

// Close shuts down Chrome.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.cleanup()
}

// Capture navigates a fresh stealth page to the document and screenshots the
// requested clip. The page is always closed, capture errors included.
func (c *Chrome) Capture(ctx context.Context, doc string, opts Options) ([]byte, error) {
	opts.defaults()

	c.mu.RLock()
	b := c.browser
	closed := c.closed
	c.mu.RUnlock()
	if b == nil || closed {
		return nil, ErrUnavailable
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("rasterize: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigateTimeout)
	defer cancel()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
	if err := page.Context(navCtx).Navigate(dataURL); err != nil {
		return nil, fmt.Errorf("rasterize: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.cfg.Logger.Warn("rasterize: wait load timeout", "error", err)
	}

	if err := page.Context(navCtx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: opts.Scale,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("rasterize: set viewport: %w", err)
	}

	// Wait for every image to settle. Broken images resolve too, so one bad
	// data URL cannot hang the capture.
	if _, err := page.Context(navCtx).Eval(`() => Promise.all(
		Array.from(document.images).map(img => img.complete
			? Promise.resolve()
			: new Promise(done => { img.onload = done; img.onerror = done; }))
	)`); err != nil {
		c.cfg.Logger.Warn("rasterize: image settle failed", "error", err)
	}

	select {
	case <-time.After(opts.SettleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      0,
			Y:      0,
			Width:  float64(opts.Width),
			Height: float64(opts.Height),
			Scale:  opts.Scale,
		},
	}
	if opts.Format == FormatJPEG {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = &opts.Quality
	}

	data, err := page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("rasterize: screenshot: %w", err)
	}
	return data, nil
}

func (c *Chrome) launch() (*rod.Browser, error) {
	log := c.cfg.Logger

	var wsURL string
	if c.cfg.RemoteURL != "" {
		wsURL = c.cfg.RemoteURL
		log.Info("rasterize: connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().Headless(true)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rasterize: launch: %w", err)
		}
		wsURL = u
		c.lnch = l
		log.Info("rasterize: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("rasterize: connect: %w", err)
	}
	return b, nil
}

// Recycle kills Chrome and restarts it.
func (c *Chrome) Recycle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("rasterize: manager is closed")
	}

	log := c.cfg.Logger
	log.Info("rasterize: recycling browser", "uptime", time.Since(c.startAt))

	if err := c.cleanup(); err != nil {
		log.Warn("rasterize: cleanup during recycle", "error", err)
	}

	b, err := c.launch()
	if err != nil {
		return fmt.Errorf("rasterize: relaunch: %w", err)
	}
	c.browser = b
	c.startAt = time.Now()
	return nil
}

func (c *Chrome) cleanup() error {
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return nil
}

func (c *Chrome) monitorLoop(ctx context.Context) {
	log := c.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			if c.closed || c.browser == nil {
				c.mu.RUnlock()
				return
			}
			startAt := c.startAt
			b := c.browser
			c.mu.RUnlock()

			if time.Since(startAt) > c.cfg.RecycleInterval {
				log.Info("rasterize: recycle interval reached")
				if err := c.Recycle(); err != nil {
					log.Error("rasterize: recycle failed", "error", err)
				}
				continue
			}

			used, err := jsHeapUsage(b)
			if err != nil {
				log.Debug("rasterize: heap check failed", "error", err)
				continue
			}
			if used > c.cfg.MemoryLimit {
				log.Info("rasterize: memory limit exceeded", "used", used, "limit", c.cfg.MemoryLimit)
				if err := c.Recycle(); err != nil {
					log.Error("rasterize: recycle failed", "error", err)
				}
			}
		}
	}
}

// jsHeapUsage queries Chrome's JS heap through the first open page.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("no pages for heap check")
	}
	res, err := pages[0].Eval(`() => {
		if (performance.memory) {
			return performance.memory.usedJSHeapSize;
		}
		return 0;
	}`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
