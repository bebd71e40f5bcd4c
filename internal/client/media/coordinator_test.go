package media

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

type fakeTrack struct {
	id string
}

func (f *fakeTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (f *fakeTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (f *fakeTrack) ID() string                            { return f.id }
func (f *fakeTrack) RID() string                           { return "" }
func (f *fakeTrack) StreamID() string                      { return "stream" }
func (f *fakeTrack) Kind() webrtc.RTPCodecType             { return webrtc.RTPCodecTypeAudio }

type fakeReplacer struct {
	replaced []webrtc.TrackLocal
	err      error
}

func (f *fakeReplacer) ReplaceTrack(t webrtc.TrackLocal) error {
	if f.err != nil {
		return f.err
	}
	f.replaced = append(f.replaced, t)
	return nil
}

func newTestCoordinator(t *testing.T, sender TrackReplacer, onChange func(Source)) (*Coordinator, *fakeTrack) {
	t.Helper()

	original := &fakeTrack{id: "mic"}
	c, err := NewCoordinator(sender, original, onChange)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c, original
}

func TestCoordinatorSwapsToSynthesized(t *testing.T) {
	sender := &fakeReplacer{}
	var changes []Source
	c, original := newTestCoordinator(t, sender, func(s Source) { changes = append(changes, s) })

	synth := &fakeTrack{id: "synth"}
	if err := c.UseSynthesized(synth); err != nil {
		t.Fatalf("UseSynthesized: %v", err)
	}

	if len(sender.replaced) != 1 || sender.replaced[0] != synth {
		t.Fatalf("sender got %d replacements, want the synthesized track once", len(sender.replaced))
	}
	if len(changes) != 1 || changes[0] != SourceSynthesized {
		t.Fatalf("notifications = %v, want one SourceSynthesized", changes)
	}

	if err := c.RestoreOriginal(); err != nil {
		t.Fatalf("RestoreOriginal: %v", err)
	}
	if got := sender.replaced[len(sender.replaced)-1]; got != webrtc.TrackLocal(original) {
		t.Fatal("restore did not reapply the original track")
	}
}

func TestCoordinatorRepeatedSwapIsNoop(t *testing.T) {
	sender := &fakeReplacer{}
	var changes []Source
	c, _ := newTestCoordinator(t, sender, func(s Source) { changes = append(changes, s) })

	synth := &fakeTrack{id: "synth"}
	if err := c.UseSynthesized(synth); err != nil {
		t.Fatalf("UseSynthesized: %v", err)
	}
	if err := c.UseSynthesized(synth); err != nil {
		t.Fatalf("UseSynthesized again: %v", err)
	}

	if len(sender.replaced) != 1 {
		t.Fatalf("sender got %d replacements, want 1", len(sender.replaced))
	}
	if len(changes) != 1 {
		t.Fatalf("notifications = %v, want exactly one", changes)
	}
}

func TestCoordinatorMutePreservedAcrossSwaps(t *testing.T) {
	sender := &fakeReplacer{}
	var changes []Source
	c, _ := newTestCoordinator(t, sender, func(s Source) { changes = append(changes, s) })

	if err := c.SetMuted(true); err != nil {
		t.Fatalf("SetMuted: %v", err)
	}
	if c.Current() != SourceSilent {
		t.Fatalf("Current = %v, want silent while muted", c.Current())
	}

	// A swap requested while muted must not reach the sender yet.
	synth := &fakeTrack{id: "synth"}
	if err := c.UseSynthesized(synth); err != nil {
		t.Fatalf("UseSynthesized while muted: %v", err)
	}
	if len(sender.replaced) != 1 {
		t.Fatalf("sender got %d replacements while muted, want 1 (the silence)", len(sender.replaced))
	}

	if err := c.SetMuted(false); err != nil {
		t.Fatalf("SetMuted false: %v", err)
	}
	if got := sender.replaced[len(sender.replaced)-1]; got != webrtc.TrackLocal(synth) {
		t.Fatal("unmute did not apply the deferred synthesized track")
	}

	want := []Source{SourceSilent, SourceSynthesized}
	if len(changes) != len(want) {
		t.Fatalf("notifications = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", changes, want)
		}
	}
}

func TestCoordinatorReplaceFailureKeepsState(t *testing.T) {
	sender := &fakeReplacer{err: errors.New("sender closed")}
	c, _ := newTestCoordinator(t, sender, nil)

	if err := c.UseSynthesized(&fakeTrack{id: "synth"}); err == nil {
		t.Fatal("UseSynthesized succeeded against a failing sender")
	}

	if c.Current() != SourceOriginal {
		t.Fatalf("Current = %v after failed swap, want original", c.Current())
	}
}
