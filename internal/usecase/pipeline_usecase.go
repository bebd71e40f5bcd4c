package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/constant"
	"github.com/GiorgioBrux/raimu-sub001/internal/application/metric"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain/events"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/memory"
	"github.com/GiorgioBrux/raimu-sub001/internal/speech"
)

// UtterancePipeline turns one captured utterance into personalized
// transcription deliveries: transcribe once, then per distinct listener
// language translate and optionally synthesize, concurrently. A failure in
// one language branch never affects the others.
type UtterancePipeline struct {
	registry    memory.RoomRegistry
	transcriber speech.Transcriber
	translator  speech.Translator
	synthesizer speech.Synthesizer
}

func NewUtterancePipeline(
	registry memory.RoomRegistry,
	transcriber speech.Transcriber,
	translator speech.Translator,
	synthesizer speech.Synthesizer,
) *UtterancePipeline {
	return &UtterancePipeline{
		registry:    registry,
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
	}
}

// branchResult is the outcome of one language branch. Entries are allocated
// before the fan-out so each goroutine writes through its own pointer.
type branchResult struct {
	text       string
	audio      string // base64
	durationMs int64
	err        error
}

// Process runs the full pipeline for one utterance from speakerID in roomID.
func (u *UtterancePipeline) Process(ctx context.Context, roomID, speakerID string, req events.TranscriptionRequest) error {
	enabled, ok := u.registry.TranscriptionEnabled(roomID)
	if !ok {
		metric.CountUtterance(metric.OutcomeRejected)
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	if !enabled {
		metric.CountUtterance(metric.OutcomeRejected)
		return fmt.Errorf("%w: room %s", domain.ErrTranscriptionDisabled, roomID)
	}

	speaker, ok := u.registry.Participant(roomID, speakerID)
	if !ok || speaker.Session == nil {
		metric.CountUtterance(metric.OutcomeRejected)
		return fmt.Errorf("%w: speaker %s not in room", domain.ErrValidation, speakerID)
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		metric.CountUtterance(metric.OutcomeRejected)
		return fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}

	sourceLang := req.Language
	if sourceLang == "" {
		sourceLang = domain.DefaultLanguage
	}

	start := time.Now()
	transcript, err := u.transcriber.Transcribe(ctx, audio, speech.TranscribeOpts{Language: sourceLang})
	metric.ObserveStage(metric.StageTranscribe, time.Since(start))
	if err != nil {
		metric.CountUtterance(metric.OutcomeFailed)
		return fmt.Errorf("transcribe utterance: %w", err)
	}

	// Snapshot listeners now; joins and leaves during the fan-out see the
	// membership as of utterance arrival.
	listeners, _ := u.registry.Participants(roomID)

	synthesize := speaker.Session.TTSEnabled() && len(speaker.VoiceSample) > 0

	results := u.fanOut(ctx, speaker, transcript.Text, sourceLang, listeners, synthesize)

	delivered := u.deliver(roomID, speaker, transcript.Text, sourceLang, req.Timestamp, listeners, results)
	if delivered {
		metric.CountUtterance(metric.OutcomeDelivered)
	} else {
		metric.CountUtterance(metric.OutcomeFailed)
	}

	return nil
}

// fanOut runs one branch per distinct language selected by a non-speaker
// listener. Branches for languages other than the source translate first;
// the source-language branch exists only when synthesis is on, since the
// shared transcript already serves its text. Branches run concurrently and
// are gathered before delivery.
func (u *UtterancePipeline) fanOut(
	ctx context.Context,
	speaker domain.ParticipantSnapshot,
	text, sourceLang string,
	listeners []domain.ParticipantSnapshot,
	synthesize bool,
) map[string]*branchResult {
	results := make(map[string]*branchResult)
	for _, p := range listeners {
		if p.ID == speaker.ID || p.Session == nil {
			continue
		}
		lang := p.Session.Language()
		if lang == "" {
			lang = sourceLang
		}
		if lang == sourceLang && !synthesize {
			continue
		}
		if _, seen := results[lang]; !seen {
			results[lang] = &branchResult{}
		}
	}

	var wg sync.WaitGroup
	for lang, res := range results {
		wg.Add(1)
		go func(lang string, res *branchResult) {
			defer wg.Done()
			u.runBranch(ctx, speaker, text, sourceLang, lang, synthesize, res)
		}(lang, res)
	}
	wg.Wait()

	return results
}

func (u *UtterancePipeline) runBranch(
	ctx context.Context,
	speaker domain.ParticipantSnapshot,
	text, sourceLang, targetLang string,
	synthesize bool,
	res *branchResult,
) {
	spoken := text

	if targetLang != sourceLang {
		start := time.Now()
		translated, err := u.translator.Translate(ctx, text, sourceLang, targetLang)
		metric.ObserveStage(metric.StageTranslate, time.Since(start))
		if err != nil {
			res.err = err
			slog.Warn(
				"translation branch failed",
				slog.String(constant.UserID, speaker.ID),
				slog.String(constant.Language, targetLang),
				slog.Any(constant.Error, err),
			)
			return
		}
		res.text = translated
		spoken = translated
	}

	if !synthesize {
		return
	}

	start := time.Now()
	synth, err := u.synthesizer.Synthesize(ctx, spoken, speech.SynthesizeOpts{
		Language:    targetLang,
		VoiceSample: speaker.VoiceSample,
	})
	metric.ObserveStage(metric.StageSynthesize, time.Since(start))
	if err != nil {
		// Text still delivers; only the audio is lost for this language.
		slog.Warn(
			"synthesis branch failed",
			slog.String(constant.UserID, speaker.ID),
			slog.String(constant.Language, targetLang),
			slog.Any(constant.Error, err),
		)
		return
	}

	res.audio = base64.StdEncoding.EncodeToString(synth.Audio)
	res.durationMs = synth.Duration.Milliseconds()
}

// deliver sends each listener its personalized transcription and echoes the
// original back to the speaker. Reports whether at least one message went
// out.
func (u *UtterancePipeline) deliver(
	roomID string,
	speaker domain.ParticipantSnapshot,
	text, sourceLang string,
	timestamp int64,
	listeners []domain.ParticipantSnapshot,
	results map[string]*branchResult,
) bool {
	delivered := false

	for _, p := range listeners {
		if p.Session == nil {
			continue
		}

		msg := events.Transcription{
			Type:      events.TypeTranscription,
			UserID:    speaker.ID,
			UserName:  speaker.Name,
			Text:      text,
			Language:  sourceLang,
			Timestamp: timestamp,
		}

		if p.ID != speaker.ID {
			lang := p.Session.Language()
			if lang == "" {
				lang = sourceLang
			}

			res := results[lang]
			switch {
			case res == nil:
				// Source-language listener with synthesis off: the shared
				// transcript is the whole delivery.
			case res.err != nil:
				// Branch failed: fall back to the original text rather
				// than dropping the utterance for this listener.
				slog.Warn(
					"delivering untranslated fallback",
					slog.String(constant.RoomID, roomID),
					slog.String(constant.UserID, p.ID),
					slog.String(constant.Language, lang),
				)
			default:
				if lang != sourceLang {
					msg.TranslatedText = res.text
					msg.TargetLanguage = lang
				}
				msg.Audio = res.audio
				msg.DurationMs = res.durationMs
			}
		}

		if err := p.Session.Send(msg); err != nil {
			slog.Warn(
				"transcription delivery failed",
				slog.String(constant.RoomID, roomID),
				slog.String(constant.UserID, p.ID),
				slog.Any(constant.Error, err),
			)
			continue
		}
		delivered = true
	}

	return delivered
}
