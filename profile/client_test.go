package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL}), srv
}

func TestFetch_Normalizes(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"login":"octocat","name":"The Octocat","avatar_url":"https://a/x.png","html_url":"https://github.com/octocat","public_repos":8,"followers":100,"bio":"","extra_field":"dropped"}`))
	}))

	p, err := c.Fetch(context.Background(), "octocat")
	if err != nil {
		t.Fatal(err)
	}
	if p.Login != "octocat" || p.AvatarURL != "https://a/x.png" || p.PublicRepos != 8 {
		t.Errorf("profile = %+v", p)
	}
}

func TestFetch_InvalidHandleNoNetwork(t *testing.T) {
	// WHAT: An obviously invalid handle fails locally.
	// WHY: Burning an unauthenticated rate-limit slot on "-bad-" is a bug.
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	_, err := c.Fetch(context.Background(), "-bad-")
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("network hit despite invalid handle")
	}
}

func TestFetch_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrRateLimited},
		{http.StatusInternalServerError, ErrFetchFailed},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := c.Fetch(context.Background(), "octocat")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"login":"octocat"}`))
	}))

	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), "octocat"); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("network hits = %d, want 1", got)
	}
}

func TestFetch_CacheExpiry(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"login":"octocat"}`))
	}))

	// Backdate the clock so the first entry looks stale.
	base := time.Now()
	c.cache.now = func() time.Time { return base }
	if _, err := c.Fetch(context.Background(), "octocat"); err != nil {
		t.Fatal(err)
	}
	c.cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := c.Fetch(context.Background(), "octocat"); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("network hits = %d, want 2 (expired entry refetched)", got)
	}
}

func TestFetch_ConcurrentDedup(t *testing.T) {
	// WHAT: Two concurrent fetches for the same handle produce exactly one
	// HTTP request, and both callers get the same value.
	var hits atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"login":"alice","avatar_url":"https://a/alice.png"}`))
	}))

	var wg sync.WaitGroup
	results := make([]Profile, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Fetch(context.Background(), "alice")
		}(i)
	}

	// Let both goroutines reach the client before the server responds.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Login != "alice" {
			t.Errorf("caller %d: %+v", i, results[i])
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("network hits = %d, want 1", got)
	}
}

func TestFetchRepo(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octocat/hello-world" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"name":"hello-world","full_name":"octocat/hello-world","stargazers_count":42,"language":"Go"}`))
	}))

	repo, err := c.FetchRepo(context.Background(), "octocat", "hello-world")
	if err != nil {
		t.Fatal(err)
	}
	if repo.Stars != 42 || repo.Language != "Go" {
		t.Errorf("repo = %+v", repo)
	}
}

func TestFetchRepo_InvalidName(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	_, err := c.FetchRepo(context.Background(), "octocat", "my repo!")
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}
