// Package export turns the live card into a downloadable raster image at a
// fixed target resolution. The pipeline never touches the source subtree:
// it deep-clones the card, forces the canonical desktop layout onto the
// clone, composites the background overlay as a real node, stages the
// result in a standalone capture document, and hands that to the
// rasterizer. When no browser rasterizer is reachable, a built-in renderer
// draws a degraded but faithful approximation from the same scale table.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/rasterize"
)

var (
	// ErrInProgress rejects a second export while one is running. Calls
	// are refused, never queued.
	ErrInProgress = errors.New("export: already in progress")

	// ErrNoSource means the request carried no card subtree.
	ErrNoSource = errors.New("export: no source element")
)

// DefaultBaseName is the filename stem when the request does not name one.
const DefaultBaseName = "github-card"

// Config configures the export service.
type Config struct {
	// Rasterizer captures the staging document. Nil or unavailable means
	// every export takes the built-in fallback path.
	Rasterizer rasterize.Rasterizer

	// CSS is the card stylesheet embedded into the staging document,
	// normally render.CSS().
	CSS string

	// BaseName is the default filename stem. Default: "github-card".
	BaseName string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseName == "" {
		c.BaseName = DefaultBaseName
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Request is one export invocation. It is consumed whole and not retained.
type Request struct {
	// Source is the live card element. It is cloned, never mutated.
	Source *html.Node

	// State is the card snapshot the source was rendered from.
	State card.State

	// Filename is the output stem, without extension. Optional.
	Filename string

	// Format of the produced image. Default: PNG.
	Format rasterize.Format
}

// Result is a finished export.
type Result struct {
	Data     []byte
	Filename string
	MIME     string
}

// Service runs exports one at a time.
type Service struct {
	cfg Config

	mu         sync.Mutex
	inProgress bool
	lastErr    string
}

// New creates an export Service.
func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

// InProgress reports whether an export is currently running.
func (s *Service) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

// LastError returns the message of the most recent failed export, or ""
// when the last export succeeded.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Export runs the full pipeline and returns the encoded image. A call made
// while another export is running fails immediately with ErrInProgress.
// All other failures are recorded as the retrievable last error. Staging
// resources live only inside this call, on every exit path.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.finish()

	res, err := s.run(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.cfg.Logger.Error("export: failed", "error", err)
		return nil, err
	}
	s.cfg.Logger.Info("export: done", "filename", res.Filename, "bytes", len(res.Data))
	return res, nil
}

func (s *Service) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return ErrInProgress
	}
	s.inProgress = true
	return nil
}

func (s *Service) finish() {
	s.mu.Lock()
	s.inProgress = false
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context, req Request) (*Result, error) {
	if req.Source == nil {
		return nil, ErrNoSource
	}
	format := req.Format
	if format == "" {
		format = rasterize.FormatPNG
	}
	if format != rasterize.FormatPNG && format != rasterize.FormatJPEG {
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}

	clone := cloneTree(req.Source)
	refreshImageSources(clone, req.Source)
	forceDesktopLayout(clone)
	applyBackground(clone, req.State)

	doc, err := buildStagingDoc(clone, req.State, s.cfg.CSS)
	if err != nil {
		return nil, err
	}

	filename := s.filename(req.Filename, format)

	if ras := s.cfg.Rasterizer; ras != nil && ras.Available() {
		data, err := ras.Capture(ctx, doc, rasterize.Options{
			Width:  TargetWidth,
			Height: TargetHeight,
			Format: format,
		})
		switch {
		case err == nil:
			return &Result{Data: data, Filename: filename, MIME: mimeFor(format)}, nil
		case errors.Is(err, rasterize.ErrUnavailable):
			s.cfg.Logger.Warn("export: rasterizer went away, taking fallback path", "error", err)
		default:
			return nil, fmt.Errorf("export: capture: %w", err)
		}
	}

	img, err := renderFallback(req.State)
	if err != nil {
		return nil, err
	}
	data, err := encodeImage(img, format, req.State.Theme.Background)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: filename, MIME: mimeFor(format)}, nil
}

// filename builds the output name from the requested stem, stripped of
// anything path-like.
func (s *Service) filename(stem string, format rasterize.Format) string {
	stem = strings.TrimSpace(stem)
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, stem)
	stem = strings.Trim(stem, ". ")
	if stem == "" {
		stem = s.cfg.BaseName
	}
	return stem + "." + extFor(format)
}
