// Package profile fetches GitHub user and repository data for the card.
// It wraps the REST API with a short-TTL cache and per-key in-flight request
// deduplication, and maps HTTP outcomes onto domain errors so callers never
// see raw status codes.
package profile

import (
	"errors"
	"time"
)

// Sentinel errors for the fetch outcomes the UI distinguishes.
var (
	// ErrInvalidHandle wraps the validation message for a malformed handle.
	ErrInvalidHandle = errors.New("profile: invalid handle")

	// ErrNotFound is returned for a 404 from the API.
	ErrNotFound = errors.New("profile: handle not found")

	// ErrRateLimited is returned for a 403 (unauthenticated rate limit).
	ErrRateLimited = errors.New("profile: rate limit exceeded, try again later")

	// ErrFetchFailed covers transport errors and unexpected statuses.
	ErrFetchFailed = errors.New("profile: failed to fetch profile")
)

// Profile is the normalized subset of GitHub user fields the card needs.
type Profile struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Bio         string `json:"bio"`
}

// Repo is the normalized subset of GitHub repository fields.
type Repo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	Language    string `json:"language"`
}

// DefaultTTL is how long fetched profiles stay cached. One hour keeps well
// under the unauthenticated rate limit for a normal editing session.
const DefaultTTL = time.Hour

// DefaultBaseURL is the production GitHub API base.
const DefaultBaseURL = "https://api.github.com"

// DefaultAvatarURL is shown before any profile is loaded.
const DefaultAvatarURL = "https://avatars.githubusercontent.com/u/0"
