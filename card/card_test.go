package card

import (
	"errors"
	"testing"
)

func str(s string) *string { return &s }

func TestUpdate_AllOrNothing(t *testing.T) {
	// WHAT: One invalid field rejects the whole patch.
	// WHY: Partial application would leave the card in a state the user
	// never asked for.
	c := New()
	err := c.Update(Patch{
		Title:  str("Fine Title"),
		Accent: str("red"), // not a hex color
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if _, ok := fe["accent_color"]; !ok {
		t.Errorf("expected accent_color in field errors, got %v", fe)
	}

	s := c.Snapshot()
	if s.Title != DefaultTitle {
		t.Errorf("title changed despite rejected patch: %q", s.Title)
	}
	if s.Theme.Accent != DefaultAccentColor {
		t.Errorf("accent changed despite rejected patch: %q", s.Theme.Accent)
	}
}

func TestUpdate_AvatarPreserved(t *testing.T) {
	// WHAT: Unrelated field edits never erase a previously-loaded avatar.
	c := New()
	c.ApplyProfile("octocat", "https://avatars.githubusercontent.com/u/583231")

	if err := c.Update(Patch{Title: str("New Title"), Description: str("desc")}); err != nil {
		t.Fatal(err)
	}
	s := c.Snapshot()
	if s.AvatarURL == "" {
		t.Fatal("avatar erased by unrelated update")
	}
	if s.Title != "New Title" {
		t.Errorf("title = %q", s.Title)
	}
}

func TestUpdate_AvatarExplicitClear(t *testing.T) {
	c := New()
	c.ApplyProfile("octocat", "https://example.com/a.png")
	if err := c.Update(Patch{AvatarURL: str("")}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.AvatarURL != "" {
		t.Errorf("explicit clear ignored: %q", s.AvatarURL)
	}
}

func TestUpdate_HandleGatedAfterProfileLoad(t *testing.T) {
	// WHAT: Once a profile is loaded, a plain-text handle edit no longer
	// overwrites the displayed handle.
	c := New()
	c.ApplyProfile("octocat", "https://example.com/a.png")

	if err := c.Update(Patch{Handle: str("someone-else")}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.Handle != "octocat" {
		t.Errorf("handle overwritten after profile load: %q", s.Handle)
	}
}

func TestUpdate_HandleAppliedBeforeProfileLoad(t *testing.T) {
	c := New()
	if err := c.Update(Patch{Handle: str("alice")}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.Handle != "alice" {
		t.Errorf("handle = %q", s.Handle)
	}
}

func TestUpdate_InvalidColorLeavesPriorValue(t *testing.T) {
	c := New()
	if err := c.Update(Patch{Accent: str("#ff0000")}); err != nil {
		t.Fatal(err)
	}
	if err := c.Update(Patch{Accent: str("red")}); err == nil {
		t.Fatal("expected error for named color")
	}
	if s := c.Snapshot(); s.Theme.Accent != "#ff0000" {
		t.Errorf("accent = %q, want prior valid value", s.Theme.Accent)
	}
}

func TestReset_Idempotent(t *testing.T) {
	c := New()
	c.ApplyProfile("octocat", "https://example.com/a.png")
	if err := c.Update(Patch{Title: str("T"), Border: str("#000000")}); err != nil {
		t.Fatal(err)
	}

	c.Reset()
	first := c.Snapshot()
	c.Reset()
	second := c.Snapshot()

	if first != second {
		t.Errorf("reset is not idempotent: %+v vs %+v", first, second)
	}
	if first.Handle != "" || first.ProfileLoaded || first.AvatarURL != "" {
		t.Errorf("reset did not restore defaults: %+v", first)
	}
}

func TestSubscribe_OrderAndPanicIsolation(t *testing.T) {
	// WHAT: Listeners run synchronously in subscription order, and a
	// panicking listener does not block the ones after it.
	c := New()
	var order []int
	c.Subscribe(func(newState, oldState State) { order = append(order, 1) })
	c.Subscribe(func(newState, oldState State) { panic("boom") })
	c.Subscribe(func(newState, oldState State) { order = append(order, 3) })

	if err := c.Update(Patch{Title: str("T")}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Errorf("order = %v, want [1 3]", order)
	}
}

func TestSubscribe_ReceivesNewAndOld(t *testing.T) {
	c := New()
	var gotNew, gotOld State
	c.Subscribe(func(newState, oldState State) { gotNew, gotOld = newState, oldState })

	if err := c.Update(Patch{Title: str("After")}); err != nil {
		t.Fatal(err)
	}
	if gotOld.Title != DefaultTitle || gotNew.Title != "After" {
		t.Errorf("got new=%q old=%q", gotNew.Title, gotOld.Title)
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	c := New()
	calls := 0
	cancel := c.Subscribe(func(newState, oldState State) { calls++ })
	if err := c.Update(Patch{Title: str("A")}); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := c.Update(Patch{Title: str("B")}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUpdate_OverlayOpacityRejected(t *testing.T) {
	// WHAT: Opacity outside [0,1] is rejected, not silently clamped.
	c := New()
	bad := 1.5
	if err := c.Update(Patch{OverlayOpacity: &bad}); err == nil {
		t.Fatal("expected error")
	}
	okv := 0.3
	if err := c.Update(Patch{OverlayOpacity: &okv}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.OverlayOpacity != 0.3 {
		t.Errorf("opacity = %v", s.OverlayOpacity)
	}
}

func TestUpdate_ImageSlots(t *testing.T) {
	c := New()
	if err := c.Update(Patch{Logo: &ImagePatch{Image: Image{DataURL: "data:image/png;base64,AA==", Name: "logo.png"}}}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.Logo == nil || s.Logo.Name != "logo.png" {
		t.Fatalf("logo not set: %+v", c.Snapshot().Logo)
	}
	if err := c.Update(Patch{Logo: &ImagePatch{Remove: true}}); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.Logo != nil {
		t.Error("logo not removed")
	}
}
