package card

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/cardgen/validate"
)

// Patch is a partial update. Nil fields are left untouched; a non-nil field
// is validated and applied. The whole patch is rejected if any field fails.
type Patch struct {
	Handle      *string
	RepoLabel   *string
	Title       *string
	Description *string

	// AvatarURL is only ever changed through an explicit patch field or
	// ApplyProfile. A pointer to "" clears it.
	AvatarURL *string

	Accent     *string
	Border     *string
	Background *string

	Logo            *ImagePatch
	BackgroundImage *ImagePatch
	OverlayOpacity  *float64
}

// ImagePatch sets or removes an image slot.
type ImagePatch struct {
	Remove bool
	Image  Image
}

// Listener receives the post- and pre-update state after every successful
// mutation. Listeners run synchronously, in subscription order.
type Listener func(newState, oldState State)

// Card is the mutex-guarded owner of the card state.
type Card struct {
	mu     sync.Mutex
	state  State
	subs   []subscription
	nextID int
	logger *slog.Logger
}

type subscription struct {
	id int
	fn Listener
}

// Option configures a Card.
type Option func(*Card)

// WithLogger sets the logger used to report listener panics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Card) { c.logger = l }
}

// New creates a Card holding the default state.
func New(opts ...Option) *Card {
	c := &Card{state: Defaults(), logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Card) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a listener and returns a cancel function. Listeners
// are invoked synchronously on every successful mutation; a panic in one
// listener is recovered and logged so it cannot block the others.
func (c *Card) Subscribe(fn Listener) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Update validates every present field and, only if all pass, merges the
// patch into the state. On any failure it returns FieldErrors and the state
// is completely unchanged.
//
// Two invariants are enforced here:
//   - a previously-loaded avatar survives unrelated edits; only an explicit
//     AvatarURL patch or ApplyProfile may change it;
//   - once a profile is loaded, plain-text handle edits no longer overwrite
//     the displayed handle (they still validate, and are silently skipped).
func (c *Card) Update(p Patch) error {
	errs := validatePatch(p)
	if len(errs) > 0 {
		return errs
	}

	c.mu.Lock()
	old := c.state
	next := old

	if p.Handle != nil && !old.ProfileLoaded {
		next.Handle = *p.Handle
	}
	if p.RepoLabel != nil {
		next.RepoLabel = *p.RepoLabel
	}
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.AvatarURL != nil {
		next.AvatarURL = *p.AvatarURL
	}
	if p.Accent != nil {
		next.Theme.Accent = *p.Accent
	}
	if p.Border != nil {
		next.Theme.Border = *p.Border
	}
	if p.Background != nil {
		next.Theme.Background = *p.Background
	}
	if p.Logo != nil {
		if p.Logo.Remove {
			next.Logo = nil
		} else {
			img := p.Logo.Image
			next.Logo = &img
		}
	}
	if p.BackgroundImage != nil {
		if p.BackgroundImage.Remove {
			next.Background = nil
		} else {
			img := p.BackgroundImage.Image
			next.Background = &img
		}
	}
	if p.OverlayOpacity != nil {
		next.OverlayOpacity = *p.OverlayOpacity
	}

	c.state = next
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	c.notify(subs, next, old)
	return nil
}

// ApplyProfile records a successful profile fetch: handle and avatar are set
// and ProfileLoaded becomes true.
func (c *Card) ApplyProfile(login, avatarURL string) {
	c.mu.Lock()
	old := c.state
	next := old
	next.Handle = login
	next.AvatarURL = avatarURL
	next.ProfileLoaded = true
	c.state = next
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	c.notify(subs, next, old)
}

// Reset restores the default state and signals listeners. Calling it twice
// yields the same state as calling it once.
func (c *Card) Reset() {
	c.mu.Lock()
	old := c.state
	next := Defaults()
	c.state = next
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	c.notify(subs, next, old)
}

func (c *Card) notify(subs []subscription, newState, oldState State) {
	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("card: listener panic", "panic", r)
				}
			}()
			s.fn(newState, oldState)
		}()
	}
}

func validatePatch(p Patch) FieldErrors {
	errs := FieldErrors{}

	check := func(field string, res validate.Result) {
		if !res.OK {
			errs[field] = res.Message
		}
	}

	if p.Handle != nil && *p.Handle != "" {
		check("handle", validate.GitHubUsername(*p.Handle))
	}
	if p.RepoLabel != nil && *p.RepoLabel != "" {
		check("repo_label", validate.RepoName(*p.RepoLabel))
	}
	if p.Title != nil && *p.Title != "" {
		check("title", validate.ProjectName(*p.Title))
	}
	if p.Description != nil {
		check("description", validate.Description(*p.Description))
	}
	if p.Accent != nil {
		check("accent_color", validate.HexColor(*p.Accent))
	}
	if p.Border != nil {
		check("border_color", validate.HexColor(*p.Border))
	}
	if p.Background != nil {
		check("background_color", validate.HexColor(*p.Background))
	}
	if p.OverlayOpacity != nil {
		check("overlay_opacity", validate.OverlayOpacity(*p.OverlayOpacity))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
