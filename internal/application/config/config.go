package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, parsed from the environment.
type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`
	Domain     string `env:"DOMAIN" envDefault:"http://localhost:3000"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"web"`

	Speech   SpeechConfig
	Postgres PostgresConfig
}

// SpeechConfig selects the external engines used for transcription,
// translation and synthesis.
type SpeechConfig struct {
	APIKey  string `env:"OPENAI_API_KEY,required"`
	BaseURL string `env:"OPENAI_BASE_URL"`

	TranscribeModel string `env:"SPEECH_TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranslateModel  string `env:"SPEECH_TRANSLATE_MODEL" envDefault:"gpt-4o-mini"`
	SynthesizeModel string `env:"SPEECH_SYNTHESIZE_MODEL" envDefault:"tts-1"`
	SynthesizeVoice string `env:"SPEECH_SYNTHESIZE_VOICE" envDefault:"alloy"`
}

// PostgresConfig backs the voice-sample library. Room state itself is never
// persisted.
type PostgresConfig struct {
	URL string `env:"POSTGRES_URL"`

	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Name     string `env:"POSTGRES_NAME" envDefault:"raimu"`
	SSL      string `env:"POSTGRES_SSL" envDefault:"disable"`
}

func (p *PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSL,
	)
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &c, nil
}
