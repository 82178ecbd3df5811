// Package notify keeps the small queue of transient user-facing messages:
// export finished, profile not found, storage degraded. Messages dismiss
// themselves after a few seconds unless the user is interacting with them,
// and the queue never grows beyond a fixed size.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one transient message.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Config configures a Center.
type Config struct {
	// MaxActive caps the queue; pushing beyond it evicts the oldest
	// notification. Default: 3.
	MaxActive int

	// DismissAfter is the auto-dismiss delay. Default: 5s.
	DismissAfter time.Duration

	// OnChange, when set, is called with the active queue after every
	// mutation. Called without internal locks held.
	OnChange func([]Notification)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxActive <= 0 {
		c.MaxActive = 3
	}
	if c.DismissAfter <= 0 {
		c.DismissAfter = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type entry struct {
	n         Notification
	timer     *time.Timer
	paused    bool
	remaining time.Duration
	deadline  time.Time
}

// Center owns the active notification queue. Construct one and pass it to
// the components that raise messages; there is no package-level instance.
type Center struct {
	cfg Config

	mu     sync.Mutex
	active []*entry
	now    func() time.Time
}

// NewCenter creates a notification Center.
func NewCenter(cfg Config) *Center {
	cfg.defaults()
	return &Center{cfg: cfg, now: time.Now}
}

// Info pushes an informational message and returns its id.
func (c *Center) Info(msg string) string { return c.Push(LevelInfo, msg) }

// Success pushes a success message and returns its id.
func (c *Center) Success(msg string) string { return c.Push(LevelSuccess, msg) }

// Warning pushes a warning and returns its id.
func (c *Center) Warning(msg string) string { return c.Push(LevelWarning, msg) }

// Error pushes an error message and returns its id.
func (c *Center) Error(msg string) string { return c.Push(LevelError, msg) }

// Push adds a notification, evicting the oldest one when the queue is full,
// and arms its auto-dismiss timer.
func (c *Center) Push(level Level, msg string) string {
	e := &entry{n: Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: c.now(),
	}}

	c.mu.Lock()
	for len(c.active) >= c.cfg.MaxActive {
		evicted := c.active[0]
		evicted.stopTimer()
		c.active = c.active[1:]
	}
	c.active = append(c.active, e)
	e.deadline = c.now().Add(c.cfg.DismissAfter)
	e.timer = time.AfterFunc(c.cfg.DismissAfter, func() { c.Dismiss(e.n.ID) })
	c.mu.Unlock()

	c.cfg.Logger.Debug("notify: pushed", "level", level, "message", msg)
	c.changed()
	return e.n.ID
}

// Dismiss removes a notification immediately. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	removed := false
	for i, e := range c.active {
		if e.n.ID == id {
			e.stopTimer()
			c.active = append(c.active[:i], c.active[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()
	if removed {
		c.changed()
	}
}

// Pause suspends the auto-dismiss timer, keeping the remaining time. Used
// while the pointer hovers a notification so it cannot vanish mid-read.
func (c *Center) Pause(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.active {
		if e.n.ID != id || e.paused {
			continue
		}
		e.stopTimer()
		e.paused = true
		e.remaining = e.deadline.Sub(c.now())
		if e.remaining < 0 {
			e.remaining = 0
		}
		return
	}
}

// Resume re-arms a paused notification's timer with its remaining time.
func (c *Center) Resume(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.active {
		if e.n.ID != id || !e.paused {
			continue
		}
		e.paused = false
		e.deadline = c.now().Add(e.remaining)
		e.timer = time.AfterFunc(e.remaining, func() { c.Dismiss(e.n.ID) })
		return
	}
}

// Active returns the current queue, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	for i, e := range c.active {
		out[i] = e.n
	}
	return out
}

func (c *Center) changed() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(c.Active())
	}
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
