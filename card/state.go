// Package card owns the card's displayable state: the single source of truth
// read by the renderer and the export pipeline, mutated by validated form
// edits and profile-fetch results. Persistence mirrors this state but is
// never authoritative while the session is open.
package card

// Image is an uploaded logo or background image, carried inline as a data
// URL so the preview and the export staging document embed it directly.
type Image struct {
	DataURL string `json:"data_url"`
	Name    string `json:"name"`
}

// Theme holds the three card colors as hex strings. Invalid values are
// rejected at the Update boundary and can never be present here.
type Theme struct {
	Accent     string `json:"accent_color"`
	Border     string `json:"border_color"`
	Background string `json:"background_color"`
}

// State is the card's present content. It is a value type: Snapshot returns
// a copy, and subscribers receive copies, so no caller can mutate the card
// behind its back.
type State struct {
	Handle      string `json:"handle"`
	RepoLabel   string `json:"repo_label"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// AvatarURL is set by a successful profile fetch and preserved across
	// unrelated field edits until explicitly cleared.
	AvatarURL string `json:"avatar_url"`

	Theme Theme `json:"theme"`

	Logo       *Image `json:"logo,omitempty"`
	Background *Image `json:"background,omitempty"`

	// OverlayOpacity darkens the background image for text legibility.
	// Meaningful only when Background is set. Always within [0, 1].
	OverlayOpacity float64 `json:"overlay_opacity"`

	// ProfileLoaded becomes true after a successful profile fetch and gates
	// whether plain-text handle edits may overwrite the displayed handle.
	ProfileLoaded bool `json:"profile_loaded"`
}

// Default theme colors, matching the shipped preview stylesheet.
const (
	DefaultAccentColor     = "#ffffff"
	DefaultBorderColor     = "#3b82f6"
	DefaultBackgroundColor = "#10192a"

	DefaultTitle          = "Project Name"
	DefaultOverlayOpacity = 0.6
)

// Defaults returns the startup state used before hydration and after Reset.
func Defaults() State {
	return State{
		Title: DefaultTitle,
		Theme: Theme{
			Accent:     DefaultAccentColor,
			Border:     DefaultBorderColor,
			Background: DefaultBackgroundColor,
		},
		OverlayOpacity: DefaultOverlayOpacity,
	}
}
