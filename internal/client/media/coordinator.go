// Package media swaps what a participant's outgoing audio sender carries:
// their live microphone, silence while muted, or a synthesized translation
// clip. Swaps go through RTPSender.ReplaceTrack so no renegotiation happens.
package media

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Source identifies what the sender is currently emitting.
type Source int

const (
	SourceOriginal Source = iota
	SourceSilent
	SourceSynthesized
)

func (s Source) String() string {
	switch s {
	case SourceOriginal:
		return "original"
	case SourceSilent:
		return "silent"
	case SourceSynthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

// TrackReplacer is the slice of *webrtc.RTPSender the coordinator needs.
type TrackReplacer interface {
	ReplaceTrack(webrtc.TrackLocal) error
}

// Coordinator owns one sender's track substitutions. Mute always wins: the
// desired source is remembered while muted and restored on unmute, and the
// observer hears about effective output changes only, exactly once per swap.
type Coordinator struct {
	mu sync.Mutex

	sender      TrackReplacer
	original    webrtc.TrackLocal
	silent      webrtc.TrackLocal
	synthesized webrtc.TrackLocal

	desired Source
	applied Source
	muted   bool

	onChange func(Source)
}

// NewCoordinator starts with the original track applied. onChange may be
// nil.
func NewCoordinator(sender TrackReplacer, original webrtc.TrackLocal, onChange func(Source)) (*Coordinator, error) {
	// The silent placeholder is a local track nothing ever writes to.
	silent, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-silent", original.StreamID(),
	)
	if err != nil {
		return nil, fmt.Errorf("create silent track: %w", err)
	}

	return &Coordinator{
		sender:   sender,
		original: original,
		silent:   silent,
		desired:  SourceOriginal,
		applied:  SourceOriginal,
		onChange: onChange,
	}, nil
}

// UseSynthesized swaps the sender to the given synthesized track. While
// muted the swap is deferred until unmute.
func (c *Coordinator) UseSynthesized(track webrtc.TrackLocal) error {
	c.mu.Lock()
	c.synthesized = track
	c.desired = SourceSynthesized
	return c.applyAndUnlock()
}

// RestoreOriginal swaps the sender back to the microphone track.
func (c *Coordinator) RestoreOriginal() error {
	c.mu.Lock()
	c.desired = SourceOriginal
	return c.applyAndUnlock()
}

// SetMuted toggles silence. The desired source survives the mute window.
func (c *Coordinator) SetMuted(muted bool) error {
	c.mu.Lock()
	c.muted = muted
	return c.applyAndUnlock()
}

// Current reports the effective output.
func (c *Coordinator) Current() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Muted reports the mute flag.
func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// applyAndUnlock reconciles the applied track with desired state, then
// releases the lock before notifying so observers may call back in.
func (c *Coordinator) applyAndUnlock() error {
	target := c.desired
	if c.muted {
		target = SourceSilent
	}

	if target == c.applied {
		c.mu.Unlock()
		return nil
	}

	var track webrtc.TrackLocal
	switch target {
	case SourceSilent:
		track = c.silent
	case SourceSynthesized:
		track = c.synthesized
	default:
		track = c.original
	}

	if err := c.sender.ReplaceTrack(track); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("replace track with %s: %w", target, err)
	}

	c.applied = target
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(target)
	}

	return nil
}
