package webui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/cardgen/bus"
	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/export"
	"github.com/hazyhaar/cardgen/profile"
	"github.com/hazyhaar/cardgen/rasterize"
	"github.com/hazyhaar/cardgen/validate"
)

// ProfileFetcher resolves a GitHub handle to a normalized profile.
type ProfileFetcher interface {
	Fetch(ctx context.Context, handle string) (profile.Profile, error)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

type cardRequest struct {
	Handle      *string `json:"handle,omitempty"`
	RepoLabel   *string `json:"repo_label,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleCardUpdate(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch := card.Patch{
		Handle:      req.Handle,
		RepoLabel:   req.RepoLabel,
		Title:       req.Title,
		Description: req.Description,
	}
	if !s.applyPatch(w, patch) {
		return
	}
	s.publishFieldEvents(req)
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

type colorsRequest struct {
	Accent         *string  `json:"accent,omitempty"`
	Border         *string  `json:"border,omitempty"`
	Background     *string  `json:"background,omitempty"`
	OverlayOpacity *float64 `json:"overlay_opacity,omitempty"`
}

func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	var req colorsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch := card.Patch{
		Accent:         req.Accent,
		Border:         req.Border,
		Background:     req.Background,
		OverlayOpacity: req.OverlayOpacity,
	}
	if !s.applyPatch(w, patch) {
		return
	}
	if s.cfg.Bus != nil {
		for slot, v := range map[string]*string{
			"accent": req.Accent, "border": req.Border, "background": req.Background,
		} {
			if v != nil {
				s.cfg.Bus.Publish(bus.ColorChanged{Slot: slot, Value: *v})
			}
		}
	}
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if slot != "logo" && slot != "background" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown image slot %q", slot))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, validate.MaxImageBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validate.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mime := http.DetectContentType(data)
	if res := validate.ImageFile(mime, int64(len(data))); !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string]string{slot: res.Message},
		})
		return
	}

	img := card.Image{
		DataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		Name:    header.Filename,
	}
	patch := card.Patch{}
	if slot == "logo" {
		patch.Logo = &card.ImagePatch{Image: img}
	} else {
		patch.BackgroundImage = &card.ImagePatch{Image: img}
	}
	if !s.applyPatch(w, patch) {
		return
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.FileChanged{Slot: slot, Name: header.Filename})
	}
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

func (s *Server) handleImageRemove(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	patch := card.Patch{}
	switch slot {
	case "logo":
		patch.Logo = &card.ImagePatch{Remove: true}
	case "background":
		patch.BackgroundImage = &card.ImagePatch{Remove: true}
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown image slot %q", slot))
		return
	}
	if !s.applyPatch(w, patch) {
		return
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.FileChanged{Slot: slot, Removed: true})
	}
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Profiles == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("profile lookups disabled"))
		return
	}
	handle := chi.URLParam(r, "handle")

	p, err := s.cfg.Profiles.Fetch(r.Context(), handle)
	if err != nil {
		s.profileError(w, handle, err)
		return
	}

	s.cfg.Card.ApplyProfile(p.Login, p.AvatarURL)
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.ProfileLoaded{Login: p.Login, AvatarURL: p.AvatarURL})
	}
	if s.cfg.Notify != nil {
		s.cfg.Notify.Success("Loaded profile " + p.Login)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) profileError(w http.ResponseWriter, handle string, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidHandle):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string]string{"handle": err.Error()},
		})
	case errors.Is(err, profile.ErrNotFound):
		if s.cfg.Notify != nil {
			s.cfg.Notify.Warning("GitHub user " + handle + " not found")
		}
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, profile.ErrRateLimited):
		if s.cfg.Notify != nil {
			s.cfg.Notify.Warning("GitHub rate limit exceeded, try again later")
		}
		writeError(w, http.StatusTooManyRequests, err)
	default:
		if s.cfg.Notify != nil {
			s.cfg.Notify.Error("Failed to fetch profile, check connectivity")
		}
		writeError(w, http.StatusBadGateway, err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	// Reset is destructive; the client must confirm explicitly.
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reset requires confirm=true"))
		return
	}
	s.cfg.Card.Reset()
	if s.cfg.Store != nil {
		if ok := s.cfg.Store.Clear(); !ok {
			s.cfg.Logger.Warn("webui: clear persistence failed")
		}
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.SettingsUpdated{})
	}
	if s.cfg.Notify != nil {
		s.cfg.Notify.Info("Card reset to defaults")
	}
	writeJSON(w, http.StatusOK, s.cfg.Card.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := rasterize.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = rasterize.FormatPNG
	}
	state := s.cfg.Card.Snapshot()
	source, err := s.cfg.Renderer.CardNode(state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := s.cfg.Exporter.Export(r.Context(), export.Request{
		Source:   source,
		State:    state,
		Filename: r.URL.Query().Get("filename"),
		Format:   format,
	})
	if err != nil {
		s.exportError(w, err)
		return
	}

	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.ExportFinished{Filename: res.Filename, OK: true})
	}
	if s.cfg.Notify != nil {
		s.cfg.Notify.Success("Exported " + res.Filename)
	}
	w.Header().Set("Content-Type", res.MIME)
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.Write(res.Data)
}

func (s *Server) exportError(w http.ResponseWriter, err error) {
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(bus.ExportFinished{OK: false, Err: err.Error()})
	}
	switch {
	case errors.Is(err, export.ErrInProgress):
		writeError(w, http.StatusConflict, err)
	default:
		if s.cfg.Notify != nil {
			s.cfg.Notify.Error("Export failed, please try again")
		}
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Notify == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Notify.Active())
}

func (s *Server) handleNotifyAction(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Notify == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	id := chi.URLParam(r, "id")
	switch action(r.URL.Path) {
	case "dismiss":
		s.cfg.Notify.Dismiss(id)
	case "pause":
		s.cfg.Notify.Pause(id)
	case "resume":
		s.cfg.Notify.Resume(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func action(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

// applyPatch runs a card update and writes the 422 field-error payload on
// validation failure. Returns true when the update was applied.
func (s *Server) applyPatch(w http.ResponseWriter, p card.Patch) bool {
	if err := s.cfg.Card.Update(p); err != nil {
		var fe card.FieldErrors
		if errors.As(err, &fe) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fe})
			return false
		}
		writeError(w, http.StatusInternalServerError, err)
		return false
	}
	return true
}

func (s *Server) publishFieldEvents(req cardRequest) {
	if s.cfg.Bus == nil {
		return
	}
	for field, v := range map[string]*string{
		"handle": req.Handle, "repo_label": req.RepoLabel,
		"title": req.Title, "description": req.Description,
	} {
		if v != nil {
			s.cfg.Bus.Publish(bus.FieldChanged{Field: field, Value: *v})
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
