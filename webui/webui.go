// Package webui serves the card editor: the form page, the live preview,
// the JSON API the form talks to, and the export download endpoint. It is
// the only package that knows about HTTP; everything else is wired in
// through the Config.
package webui

import (
	"embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazyhaar/cardgen/bus"
	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/export"
	"github.com/hazyhaar/cardgen/notify"
	"github.com/hazyhaar/cardgen/render"
	"github.com/hazyhaar/cardgen/store"
)

//go:embed static
var staticFS embed.FS

// Config wires the server's collaborators.
type Config struct {
	Card     *card.Card
	Renderer *render.Renderer
	Exporter *export.Service

	// Profiles resolves GitHub handles. Usually *profile.Client.
	Profiles ProfileFetcher

	// Store mirrors state to disk. Nil disables persistence.
	Store *store.Store

	// Notify receives user-facing messages. Nil disables notifications.
	Notify *notify.Center

	// Bus, when set, receives typed events for every mutation.
	Bus *bus.Bus

	Logger *slog.Logger
}

// Server is the HTTP front of the card generator.
type Server struct {
	cfg Config
	hub *hub
}

// New creates a Server and wires its change subscriptions.
func New(cfg Config) (*Server, error) {
	if cfg.Card == nil || cfg.Renderer == nil || cfg.Exporter == nil {
		return nil, fmt.Errorf("webui: Card, Renderer and Exporter are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, hub: newHub(cfg.Logger)}

	// Mirror every state change to persistence and push a refresh signal
	// to connected browsers. Runs inline on the mutating goroutine.
	cfg.Card.Subscribe(func(newState, _ card.State) {
		if cfg.Store != nil && cfg.Store.Available() {
			if ok := cfg.Store.Save(store.FromState(newState)); !ok {
				cfg.Logger.Warn("webui: persist failed")
			}
		}
		s.hub.broadcast(wsMessage{Type: "state"})
	})

	return s, nil
}

// SetNotify attaches the notification center. Separate from New because the
// center's change hook usually points back at this server's websocket hub.
// Call before Router is serving traffic.
func (s *Server) SetNotify(n *notify.Center) {
	s.cfg.Notify = n
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/preview", s.handlePreview)
	r.Get("/export", s.handleExport)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/card", s.handleCardUpdate)
		r.Post("/colors", s.handleColors)
		r.Post("/images/{slot}", s.handleImageUpload)
		r.Delete("/images/{slot}", s.handleImageRemove)
		r.Post("/profile/{handle}", s.handleProfile)
		r.Post("/reset", s.handleReset)
		r.Get("/notifications", s.handleNotifications)
		r.Post("/notifications/{id}/dismiss", s.handleNotifyAction)
		r.Post("/notifications/{id}/pause", s.handleNotifyAction)
		r.Post("/notifications/{id}/resume", s.handleNotifyAction)
	})

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cfg.Renderer.PreviewDocument(s.cfg.Card.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(doc))
}
