// Package rasterize turns an HTML document into raster image bytes. The
// primary implementation drives a headless Chrome through Rod; callers that
// cannot reach a browser fall back to the exporter's built-in renderer.
package rasterize

import (
	"context"
	"time"
)

// Format selects the capture encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Options controls a single capture.
type Options struct {
	// Width and Height of the capture clip in CSS pixels.
	Width  int
	Height int

	// Scale is the device scale factor. Default: 1.
	Scale float64

	// Format of the returned bytes. Default: FormatPNG.
	Format Format

	// Quality for JPEG captures, 1..100. Default: 95. Ignored for PNG.
	Quality int

	// SettleDelay is how long to wait after load and image settle before
	// capturing, so late reflow can finish. Default: 150ms.
	SettleDelay time.Duration
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 640
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 95
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 150 * time.Millisecond
	}
}

// Rasterizer captures a standalone HTML document as an image.
type Rasterizer interface {
	// Capture renders doc in a fresh page and returns the encoded image.
	// The document must be self-contained: inline styles and data: image
	// URLs only, no network fetches.
	Capture(ctx context.Context, doc string, opts Options) ([]byte, error)

	// Available reports whether the rasterizer can currently serve captures.
	Available() bool
}
