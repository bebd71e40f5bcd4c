// Package openaiengine implements the speech engine interfaces on the
// OpenAI API: Whisper for transcription, a chat model for translation and
// the TTS endpoint for synthesis.
package openaiengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/config"
	"github.com/GiorgioBrux/raimu-sub001/internal/domain"
	"github.com/GiorgioBrux/raimu-sub001/internal/speech"
)

// synthSampleRate is the sample rate of the PCM response format.
const synthSampleRate = 24000

type Engine struct {
	client *openai.Client

	transcribeModel string
	translateModel  string
	synthModel      string
	synthVoice      string
}

var _ speech.Engine = (*Engine)(nil)

// New builds an engine from config. BaseURL is optional and lets the engine
// point at a compatible self-hosted endpoint.
func New(cfg config.SpeechConfig) *Engine {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &Engine{
		client:          &client,
		transcribeModel: cfg.TranscribeModel,
		translateModel:  cfg.TranslateModel,
		synthModel:      cfg.SynthesizeModel,
		synthVoice:      cfg.SynthesizeVoice,
	}
}

func (e *Engine) Transcribe(ctx context.Context, audio []byte, opts speech.TranscribeOpts) (speech.Transcript, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(e.transcribeModel),
		File:  openai.File(bytes.NewReader(audio), "utterance.wav", "audio/wav"),
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}

	resp, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return speech.Transcript{}, fmt.Errorf("%w: transcribe: %v", domain.ErrEngineFailure, err)
	}

	return speech.Transcript{Text: resp.Text, Language: opts.Language}, nil
}

func (e *Engine) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a translation engine. Translate the user's message from %s to %s. Reply with the translation only.",
		sourceLang, targetLang,
	)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.translateModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: translate: %v", domain.ErrEngineFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: translate: no choices", domain.ErrEngineFailure)
	}

	return resp.Choices[0].Message.Content, nil
}

// Synthesize renders text as 16-bit PCM. The voice sample is accepted for
// interface compatibility; this endpoint selects a named voice rather than
// cloning, so the sample only gates whether synthesis runs at all (the
// pipeline's policy) while cloning-capable engines consume it directly.
func (e *Engine) Synthesize(ctx context.Context, text string, opts speech.SynthesizeOpts) (speech.SynthesisResult, error) {
	resp, err := e.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(e.synthModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(e.synthVoice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return speech.SynthesisResult{}, fmt.Errorf("%w: synthesize: %v", domain.ErrEngineFailure, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return speech.SynthesisResult{}, fmt.Errorf("%w: synthesize read: %v", domain.ErrEngineFailure, err)
	}

	samples := len(audio) / 2
	duration := time.Duration(samples) * time.Second / synthSampleRate

	return speech.SynthesisResult{
		Audio:      audio,
		SampleRate: synthSampleRate,
		Duration:   duration,
	}, nil
}
