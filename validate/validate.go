// Package validate holds the pure field validators shared by the card state,
// the persistence layer, and the web form boundary. Every validator returns a
// Result rather than an error so callers can surface the message next to the
// offending field without unwrapping anything.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxUsernameLen matches GitHub's own limit.
	MaxUsernameLen = 39
	// MaxRepoNameLen matches GitHub's repository name limit.
	MaxRepoNameLen = 100
	// MaxProjectNameLen bounds the card title.
	MaxProjectNameLen = 50
	// MaxDescriptionLen bounds the card description.
	MaxDescriptionLen = 280
	// MaxImageBytes is the upload ceiling for logo and background images.
	MaxImageBytes = 5 << 20
)

var (
	// usernamePattern is GitHub's username grammar: alphanumeric with
	// single interior hyphens, no leading or trailing hyphen.
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:-?[a-zA-Z0-9]){0,38}$`)

	repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
)

// allowedImageMIMEs is the set of accepted upload content types.
var allowedImageMIMEs = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Result is the outcome of a single field validation.
type Result struct {
	OK      bool
	Message string
}

func ok() Result            { return Result{OK: true} }
func fail(msg string) Result { return Result{Message: msg} }

// GitHubUsername validates a GitHub handle.
func GitHubUsername(username string) Result {
	if strings.TrimSpace(username) == "" {
		return fail("please enter a GitHub username")
	}
	if len(username) > MaxUsernameLen {
		return fail(fmt.Sprintf("username must be at most %d characters", MaxUsernameLen))
	}
	if !usernamePattern.MatchString(username) {
		return fail("username can only contain alphanumeric characters and single hyphens (not at the beginning or end)")
	}
	return ok()
}

// RepoName validates a repository label.
func RepoName(name string) Result {
	if strings.TrimSpace(name) == "" {
		return fail("please enter a repository name")
	}
	if len(name) > MaxRepoNameLen {
		return fail(fmt.Sprintf("repository name must be at most %d characters", MaxRepoNameLen))
	}
	if !repoNamePattern.MatchString(name) {
		return fail("repository name can only contain alphanumeric characters, periods, underscores, and hyphens")
	}
	return ok()
}

// ProjectName validates the card title.
func ProjectName(name string) Result {
	if strings.TrimSpace(name) == "" {
		return fail("please enter a project name")
	}
	if len(name) > MaxProjectNameLen {
		return fail(fmt.Sprintf("project name must be at most %d characters", MaxProjectNameLen))
	}
	return ok()
}

// Description validates the card description. Empty is valid: the field is
// optional by convention.
func Description(desc string) Result {
	if desc == "" {
		return ok()
	}
	if len(desc) > MaxDescriptionLen {
		return fail(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLen))
	}
	return ok()
}

// HexColor validates a 3- or 6-digit hex color string such as #fff or #10192a.
func HexColor(color string) Result {
	if color == "" {
		return fail("please provide a color")
	}
	if !hexColorPattern.MatchString(color) {
		return fail("invalid color format, must be a valid hex color (e.g. #FF0000)")
	}
	return ok()
}

// OverlayOpacity validates the background overlay opacity range.
func OverlayOpacity(v float64) Result {
	if v < 0 || v > 1 {
		return fail("overlay opacity must be between 0 and 1")
	}
	return ok()
}

// ImageFile validates an uploaded image by declared MIME type and size.
func ImageFile(mimeType string, size int64) Result {
	if !allowedImageMIMEs[mimeType] {
		return fail("file must be a valid image (JPEG, PNG, GIF, WEBP, or SVG)")
	}
	if size <= 0 {
		return fail("please select a file")
	}
	if size > MaxImageBytes {
		return fail(fmt.Sprintf("file size must be at most %d MB", MaxImageBytes>>20))
	}
	return ok()
}
