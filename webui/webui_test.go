package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/dbopen"
	"github.com/hazyhaar/cardgen/export"
	"github.com/hazyhaar/cardgen/notify"
	"github.com/hazyhaar/cardgen/profile"
	"github.com/hazyhaar/cardgen/rasterize"
	"github.com/hazyhaar/cardgen/render"
	"github.com/hazyhaar/cardgen/store"

	_ "modernc.org/sqlite"
)

// The real GitHub client must satisfy the handler's fetch dependency.
var _ ProfileFetcher = (*profile.Client)(nil)

type fakeProfiles struct {
	p   profile.Profile
	err error
}

func (f *fakeProfiles) Fetch(ctx context.Context, handle string) (profile.Profile, error) {
	if f.err != nil {
		return profile.Profile{}, f.err
	}
	return f.p, nil
}

type stubRasterizer struct{ release chan struct{} }

func (s *stubRasterizer) Available() bool { return true }

func (s *stubRasterizer) Capture(ctx context.Context, doc string, opts rasterize.Options) ([]byte, error) {
	if s.release != nil {
		<-s.release
	}
	return []byte("fake-image"), nil
}

type fixture struct {
	server  *Server
	card    *card.Card
	handler http.Handler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	r, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	if cfg.Card == nil {
		cfg.Card = card.New()
	}
	cfg.Renderer = r
	if cfg.Exporter == nil {
		cfg.Exporter = export.New(export.Config{Rasterizer: &stubRasterizer{}, CSS: r.CSS()})
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{server: srv, card: cfg.Card, handler: srv.Router()}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(t *testing.T, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return f.do(t, http.MethodPost, target, bytes.NewReader(b), "application/json")
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/api/state", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s card.State
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Title != card.DefaultTitle || s.Theme.Accent != card.DefaultAccentColor {
		t.Errorf("unexpected default state %+v", s)
	}
}

func TestCardUpdate(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.postJSON(t, "/api/card", map[string]string{"title": "My Tool"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if got := f.card.Snapshot().Title; got != "My Tool" {
		t.Errorf("title = %q", got)
	}
}

func TestPersistenceMirrorsUpdatesAndReset(t *testing.T) {
	// WHAT: every accepted edit is written through to the settings store,
	// and a confirmed reset clears it.
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.New(db)
	f := newFixture(t, Config{Store: st})

	rec := f.postJSON(t, "/api/card", map[string]string{"title": "My Tool"})
	if rec.Code != http.StatusOK {
		t.Fatalf("card update status = %d body=%s", rec.Code, rec.Body)
	}
	data := st.Load()
	if data == nil {
		t.Fatal("nothing persisted after update")
	}
	cardData, _ := data["card"].(map[string]any)
	if cardData["title"] != "My Tool" {
		t.Errorf("persisted title = %v", cardData["title"])
	}

	rec = f.do(t, http.MethodPost, "/api/reset?confirm=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	// Reset triggers one more subscriber save of the default state, then
	// the handler clears. Either way no edited title may survive.
	if data := st.Load(); data != nil {
		if cardData, _ := data["card"].(map[string]any); cardData["title"] == "My Tool" {
			t.Error("edited title survived reset")
		}
	}
}

func TestCardUpdate_ValidationError(t *testing.T) {
	// WHAT: an invalid field produces 422 with a field-to-message map and
	// leaves the state untouched.
	f := newFixture(t, Config{})
	rec := f.postJSON(t, "/api/card", map[string]string{"repo_label": "my repo!"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Errors["repoLabel"] == "" && body.Errors["repo_label"] == "" {
		t.Errorf("missing repo label error in %v", body.Errors)
	}
	if f.card.Snapshot().RepoLabel != "" {
		t.Error("invalid value applied")
	}
}

func TestColors(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.postJSON(t, "/api/colors", map[string]any{"accent": "#abc", "overlay_opacity": 0.3})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	s := f.card.Snapshot()
	if s.Theme.Accent != "#abc" || s.OverlayOpacity != 0.3 {
		t.Errorf("state = %+v", s)
	}

	if rec := f.postJSON(t, "/api/colors", map[string]string{"border": "red"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("named color status = %d, want 422", rec.Code)
	}
}

func pngUpload(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "logo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(img.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestImageUploadAndRemove(t *testing.T) {
	f := newFixture(t, Config{})

	body, ct := pngUpload(t, "file")
	rec := f.do(t, http.MethodPost, "/api/images/logo", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d body=%s", rec.Code, rec.Body)
	}
	s := f.card.Snapshot()
	if s.Logo == nil || !strings.HasPrefix(s.Logo.DataURL, "data:image/png;base64,") {
		t.Fatalf("logo not stored: %+v", s.Logo)
	}
	if s.Logo.Name != "logo.png" {
		t.Errorf("logo name = %q", s.Logo.Name)
	}

	rec = f.do(t, http.MethodDelete, "/api/images/logo", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	if f.card.Snapshot().Logo != nil {
		t.Error("logo still set after removal")
	}
}

func TestImageUpload_RejectsNonImage(t *testing.T) {
	f := newFixture(t, Config{})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("just some text, definitely not an image"))
	mw.Close()

	rec := f.do(t, http.MethodPost, "/api/images/background", &body, mw.FormDataContentType())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestImageUpload_UnknownSlot(t *testing.T) {
	f := newFixture(t, Config{})
	body, ct := pngUpload(t, "file")
	if rec := f.do(t, http.MethodPost, "/api/images/banner", body, ct); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProfileLoad(t *testing.T) {
	f := newFixture(t, Config{Profiles: &fakeProfiles{p: profile.Profile{
		Login:     "octocat",
		AvatarURL: "https://avatars.githubusercontent.com/u/583231",
	}}})

	rec := f.do(t, http.MethodPost, "/api/profile/octocat", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	s := f.card.Snapshot()
	if !s.ProfileLoaded || s.Handle != "octocat" || s.AvatarURL == "" {
		t.Errorf("state after profile load = %+v", s)
	}
}

func TestProfileErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{profile.ErrNotFound, http.StatusNotFound},
		{profile.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: boom", profile.ErrFetchFailed), http.StatusBadGateway},
		{fmt.Errorf("%w: bad handle", profile.ErrInvalidHandle), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		f := newFixture(t, Config{Profiles: &fakeProfiles{err: tc.err}})
		if rec := f.do(t, http.MethodPost, "/api/profile/someone", nil, ""); rec.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestResetRequiresConfirm(t *testing.T) {
	f := newFixture(t, Config{})
	f.postJSON(t, "/api/card", map[string]string{"title": "Something"})

	if rec := f.do(t, http.MethodPost, "/api/reset", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed reset status = %d, want 400", rec.Code)
	}
	if f.card.Snapshot().Title != "Something" {
		t.Error("unconfirmed reset mutated state")
	}

	if rec := f.do(t, http.MethodPost, "/api/reset?confirm=true", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("confirmed reset status = %d", rec.Code)
	}
	if f.card.Snapshot().Title != card.DefaultTitle {
		t.Error("reset did not restore defaults")
	}
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(t, http.MethodGet, "/export?format=png&filename=demo", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type = %q", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "demo.png") {
		t.Errorf("content disposition = %q", cd)
	}
	if rec.Body.String() != "fake-image" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExportConflict(t *testing.T) {
	// WHAT: a second export during an in-flight one returns 409.
	stub := &stubRasterizer{release: make(chan struct{})}
	r, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, Config{
		Exporter: export.New(export.Config{Rasterizer: stub, CSS: r.CSS()}),
	})

	done := make(chan int, 1)
	go func() {
		rec := f.do(t, http.MethodGet, "/export", nil, "")
		done <- rec.Code
	}()

	// Wait for the first export to occupy the service.
	for !f.server.cfg.Exporter.InProgress() {
		time.Sleep(time.Millisecond)
	}
	if rec := f.do(t, http.MethodGet, "/export", nil, ""); rec.Code != http.StatusConflict {
		t.Errorf("second export status = %d, want 409", rec.Code)
	}
	close(stub.release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first export status = %d", code)
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	center := notify.NewCenter(notify.Config{})
	f := newFixture(t, Config{Notify: center})
	id := center.Info("hello")

	rec := f.do(t, http.MethodGet, "/api/notifications", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello") {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}

	if rec := f.do(t, http.MethodPost, "/api/notifications/"+id+"/dismiss", nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("dismiss status = %d", rec.Code)
	}
	if len(center.Active()) != 0 {
		t.Error("notification not dismissed")
	}
}

func TestIndexAndPreview(t *testing.T) {
	f := newFixture(t, Config{})
	if rec := f.do(t, http.MethodGet, "/", nil, ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "GitHub Card Generator") {
		t.Errorf("index = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/preview", nil, ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `id="githubCard"`) {
		t.Errorf("preview = %d", rec.Code)
	}
}
