// Package bus is the typed event channel between the card core and the UI
// layer. Events form a closed set of variants, so payload shapes are
// checked at compile time instead of riding on string-keyed maps.
package bus

import (
	"log/slog"
	"sync"
)

// Event is implemented only by the variant types in this package.
type Event interface {
	isEvent()
}

// FieldChanged reports a validated text field edit.
type FieldChanged struct {
	Field string
	Value string
}

// ColorChanged reports a theme color change.
type ColorChanged struct {
	Slot  string // accent, border or background
	Value string
}

// FileChanged reports a logo or background image being set or removed.
type FileChanged struct {
	Slot    string // logo or background
	Name    string
	Removed bool
}

// SettingsUpdated reports a bulk state change: hydration or reset.
type SettingsUpdated struct{}

// ProfileLoaded reports a successful profile fetch.
type ProfileLoaded struct {
	Login     string
	AvatarURL string
}

// ExportFinished reports the outcome of an export.
type ExportFinished struct {
	Filename string
	OK       bool
	Err      string
}

func (FieldChanged) isEvent()    {}
func (ColorChanged) isEvent()    {}
func (FileChanged) isEvent()     {}
func (SettingsUpdated) isEvent() {}
func (ProfileLoaded) isEvent()   {}
func (ExportFinished) isEvent()  {}

type subscription struct {
	id int
	fn func(Event)
}

// Bus delivers events to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.Mutex
	subs   []subscription
	nextID int
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report subscriber panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers fn for all events and returns a cancel function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every subscriber inline. A panicking subscriber is
// logged and skipped; the remaining subscribers still run.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("bus: subscriber panic", "panic", r)
				}
			}()
			s.fn(e)
		}()
	}
}
