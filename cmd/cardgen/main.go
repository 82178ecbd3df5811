// Command cardgen serves the GitHub profile-card generator: a local web
// editor with a live preview, persisted settings, and PNG/JPEG export
// through a managed headless Chrome (or a built-in fallback renderer when
// no browser is available).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/cardgen/bus"
	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/dbopen"
	"github.com/hazyhaar/cardgen/export"
	"github.com/hazyhaar/cardgen/notify"
	"github.com/hazyhaar/cardgen/profile"
	"github.com/hazyhaar/cardgen/rasterize"
	"github.com/hazyhaar/cardgen/render"
	"github.com/hazyhaar/cardgen/store"
	"github.com/hazyhaar/cardgen/webui"
)

type config struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	GitHub struct {
		BaseURL  string        `yaml:"base_url"`
		Token    string        `yaml:"token"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"github"`

	Browser struct {
		Disabled  bool   `yaml:"disabled"`
		RemoteURL string `yaml:"remote_url"`
	} `yaml:"browser"`

	Export struct {
		BaseName string `yaml:"base_name"`
	} `yaml:"export"`
}

func loadConfig() config {
	var cfg config
	path := env("CONFIG", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			slog.Error("config parse", "path", path, "error", err)
			os.Exit(1)
		}
	}
	// Environment overrides the file.
	cfg.Listen = env("LISTEN", nonEmpty(cfg.Listen, ":8090"))
	cfg.DBPath = env("DB_PATH", nonEmpty(cfg.DBPath, "data/cardgen.db"))
	cfg.LogLevel = env("LOG_LEVEL", nonEmpty(cfg.LogLevel, "info"))
	cfg.GitHub.Token = env("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.Browser.RemoteURL = env("BROWSER_URL", cfg.Browser.RemoteURL)
	if os.Getenv("BROWSER_DISABLED") == "true" {
		cfg.Browser.Disabled = true
	}
	return cfg
}

func main() {
	cfg := loadConfig()

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		slog.Error("open settings db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db, store.WithLogger(logger))

	renderer, err := render.New()
	if err != nil {
		slog.Error("renderer", "error", err)
		os.Exit(1)
	}

	c := card.New(card.WithLogger(logger))
	hydrate(c, st, logger)

	// Chrome is optional; without it exports take the built-in renderer.
	var ras rasterize.Rasterizer
	if !cfg.Browser.Disabled {
		chrome := rasterize.NewChrome(rasterize.ChromeConfig{
			RemoteURL: cfg.Browser.RemoteURL,
			Logger:    logger,
		})
		if err := chrome.Start(ctx); err != nil {
			slog.Warn("chrome unavailable, exports use fallback renderer", "error", err)
		} else {
			defer chrome.Close()
			ras = chrome
		}
	}

	exporter := export.New(export.Config{
		Rasterizer: ras,
		CSS:        renderer.CSS(),
		BaseName:   cfg.Export.BaseName,
		Logger:     logger,
	})

	profiles := profile.New(profile.Config{
		BaseURL:  cfg.GitHub.BaseURL,
		Token:    cfg.GitHub.Token,
		CacheTTL: cfg.GitHub.CacheTTL,
		Logger:   logger,
	})

	events := bus.New(bus.WithLogger(logger))

	server, err := webui.New(webui.Config{
		Card:     c,
		Renderer: renderer,
		Exporter: exporter,
		Profiles: profiles,
		Store:    st,
		Bus:      events,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("webui", "error", err)
		os.Exit(1)
	}

	center := notify.NewCenter(notify.Config{
		Logger:   logger,
		OnChange: func([]notify.Notification) { server.NotifyChanged() },
	})
	server.SetNotify(center)
	if !st.Available() {
		center.Warning("Settings storage unavailable, changes will not persist")
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("cardgen listening", "addr", cfg.Listen, "browser", ras != nil)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve", "error", err)
		os.Exit(1)
	}
	slog.Info("cardgen stopped")
}

// hydrate applies persisted settings to a fresh card.
func hydrate(c *card.Card, st *store.Store, logger *slog.Logger) {
	data := st.Load()
	if data == nil {
		return
	}
	if err := c.Update(store.HydratePatch(data)); err != nil {
		logger.Warn("hydrate persisted settings", "error", err)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func nonEmpty(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
