package bus

import (
	"io"
	"log/slog"
	"testing"
)

func TestPublishOrderAndPayload(t *testing.T) {
	// WHAT: subscribers run inline, in subscription order, with the typed
	// payload intact.
	b := New()
	var got []string
	b.Subscribe(func(e Event) {
		if fc, ok := e.(FieldChanged); ok {
			got = append(got, "a:"+fc.Field)
		}
	})
	b.Subscribe(func(e Event) {
		if fc, ok := e.(FieldChanged); ok {
			got = append(got, "b:"+fc.Field)
		}
	})

	b.Publish(FieldChanged{Field: "title", Value: "x"})

	if len(got) != 2 || got[0] != "a:title" || got[1] != "b:title" {
		t.Errorf("delivery = %v, want [a:title b:title]", got)
	}
}

func TestPanicIsolation(t *testing.T) {
	// WHAT: a panicking subscriber does not block later subscribers.
	b := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var reached bool
	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(Event) { reached = true })

	b.Publish(SettingsUpdated{})

	if !reached {
		t.Error("subscriber after panicking one never ran")
	}
}

func TestCancel(t *testing.T) {
	b := New()
	var calls int
	cancel := b.Subscribe(func(Event) { calls++ })
	b.Publish(ExportFinished{OK: true})
	cancel()
	cancel() // second cancel is a no-op
	b.Publish(ExportFinished{OK: true})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestVariantSwitch(t *testing.T) {
	b := New()
	var kinds []string
	b.Subscribe(func(e Event) {
		switch e.(type) {
		case ColorChanged:
			kinds = append(kinds, "color")
		case FileChanged:
			kinds = append(kinds, "file")
		case ProfileLoaded:
			kinds = append(kinds, "profile")
		default:
			kinds = append(kinds, "other")
		}
	})
	b.Publish(ColorChanged{Slot: "accent", Value: "#fff"})
	b.Publish(FileChanged{Slot: "logo", Name: "l.png"})
	b.Publish(ProfileLoaded{Login: "octocat"})

	want := []string{"color", "file", "profile"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}
