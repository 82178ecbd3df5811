package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/cardgen/validate"
)

// maxResponseBody caps the amount of response data read from the API.
const maxResponseBody int64 = 1 << 20

// Config configures a Client.
type Config struct {
	// BaseURL overrides the GitHub API base (for testing). Empty uses production.
	BaseURL string

	// CacheTTL is how long successful responses are cached. Default: 1h.
	CacheTTL time.Duration

	// Timeout bounds a single API request. Default: 30s.
	Timeout time.Duration

	// Token is sent as a bearer token when set. Falls back to GITHUB_TOKEN.
	Token string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Token == "" {
		c.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client fetches profiles with caching and in-flight deduplication.
// Concurrent calls for the same key share a single HTTP request.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *cache
	mu     sync.Mutex
	flight map[string]*inflight
}

type inflight struct {
	done chan struct{}
	val  any
	err  error
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  newCache(cfg.CacheTTL),
		flight: make(map[string]*inflight),
	}
}

// Fetch returns the normalized profile for handle. The handle is validated
// with the same rules (and message) as the card's handle field, so obviously
// invalid input never costs a network round trip.
func (c *Client) Fetch(ctx context.Context, handle string) (Profile, error) {
	if res := validate.GitHubUsername(handle); !res.OK {
		return Profile{}, fmt.Errorf("%w: %s", ErrInvalidHandle, res.Message)
	}

	v, err := c.do(ctx, "user:"+handle, func(ctx context.Context) (any, error) {
		return c.fetchUser(ctx, handle)
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

// FetchRepo returns the normalized repository data for owner/repo.
func (c *Client) FetchRepo(ctx context.Context, owner, repo string) (Repo, error) {
	if res := validate.GitHubUsername(owner); !res.OK {
		return Repo{}, fmt.Errorf("%w: %s", ErrInvalidHandle, res.Message)
	}
	if res := validate.RepoName(repo); !res.OK {
		return Repo{}, fmt.Errorf("%w: %s", ErrInvalidHandle, res.Message)
	}

	v, err := c.do(ctx, "repo:"+owner+"/"+repo, func(ctx context.Context) (any, error) {
		return c.fetchRepo(ctx, owner, repo)
	})
	if err != nil {
		return Repo{}, err
	}
	return v.(Repo), nil
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	c.cache.clear()
}

// do runs fn once per key: cache hit short-circuits, and concurrent callers
// for the same key await the same in-flight result. The underlying request
// runs to completion even if the initiating caller abandons its context.
func (c *Client) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if v, ok := c.cache.get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	if call, ok := c.flight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.val, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflight{done: make(chan struct{})}
	c.flight[key] = call
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	call.val, call.err = fn(reqCtx)
	if call.err == nil {
		c.cache.set(key, call.val)
	}

	c.mu.Lock()
	delete(c.flight, key)
	c.mu.Unlock()
	close(call.done)

	return call.val, call.err
}

func (c *Client) fetchUser(ctx context.Context, handle string) (any, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, url.PathEscape(handle)))
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	c.cfg.Logger.Debug("profile: fetched user", "handle", handle)
	return p, nil
}

func (c *Client) fetchRepo(ctx context.Context, owner, repo string) (any, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s", c.cfg.BaseURL, url.PathEscape(owner), url.PathEscape(repo)))
	if err != nil {
		return nil, err
	}
	var r Repo
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	c.cfg.Logger.Debug("profile: fetched repo", "owner", owner, "repo", repo)
	return r, nil
}

func (c *Client) get(ctx context.Context, apiURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrFetchFailed, resp.StatusCode, snippet)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}
