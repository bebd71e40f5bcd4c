// Package speech defines the external engine interfaces the utterance
// pipeline fans out over. Implementations live under infra/adapters; the
// pipeline only ever sees these interfaces, so engines can be swapped or
// faked in tests.
package speech

import (
	"context"
	"time"
)

// Transcript is the result of one transcription call.
type Transcript struct {
	Text     string
	Language string
}

// TranscribeOpts controls transcription.
type TranscribeOpts struct {
	// Language is the speaker's declared language, used as a decoding hint.
	Language string
}

// Transcriber converts one audio clip to text. Called once per utterance;
// the result is shared across all fan-out branches.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOpts) (Transcript, error)
}

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// SynthesizeOpts controls synthesis.
type SynthesizeOpts struct {
	// Language is the target language of the text being synthesized.
	Language string

	// VoiceSample is a short reference clip biasing the synthesized voice
	// toward the speaker's timbre, for engines that support it.
	VoiceSample []byte
}

// SynthesisResult is one synthesized clip.
type SynthesisResult struct {
	Audio      []byte // 16-bit LE PCM
	SampleRate int
	Duration   time.Duration
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (SynthesisResult, error)
}

// Engine bundles the three stages a full pipeline needs.
type Engine interface {
	Transcriber
	Translator
	Synthesizer
}
