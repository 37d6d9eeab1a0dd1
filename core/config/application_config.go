package config

import (
	"context"
	"fmt"
	"time"

	"github.com/mudler/voxlog/core/voice"
)

const (
	SummaryProviderOpenAI    = "openai"
	SummaryProviderAnthropic = "anthropic"
	SummaryProviderNone      = "none"
)

type ApplicationConfig struct {
	Context context.Context

	RecordingsDir   string
	ConnectTimeout  time.Duration
	SilenceDuration time.Duration
	// SettleTimeout bounds how long post-processing waits for clips that
	// were still being written when a session stopped.
	SettleTimeout time.Duration

	DiscordToken string

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	TranscriptionModel    string
	TranscriptionLanguage string
	TranscriptionMaxBytes int64
	NoSpeechThreshold     float64

	SummaryProvider string
	SummaryModel    string
	AnthropicAPIKey string
	AnthropicURL    string

	RetentionDays  int
	MetricsAddress string
}

type AppOption func(*ApplicationConfig)

func NewApplicationConfig(o ...AppOption) *ApplicationConfig {
	opt := &ApplicationConfig{
		Context:               context.Background(),
		RecordingsDir:         "recordings",
		ConnectTimeout:        30 * time.Second,
		SilenceDuration:       voice.DefaultSilenceDuration,
		SettleTimeout:         5 * time.Second,
		TranscriptionModel:    "whisper-1",
		TranscriptionMaxBytes: 25 * 1024 * 1024,
		NoSpeechThreshold:     0.6,
		SummaryProvider:       SummaryProviderOpenAI,
		SummaryModel:          "gpt-4o-mini",
	}
	for _, oo := range o {
		oo(opt)
	}
	return opt
}

// Validate checks option combinations that can only be detected once every
// option is applied.
func (o *ApplicationConfig) Validate() error {
	switch o.SummaryProvider {
	case SummaryProviderOpenAI, SummaryProviderAnthropic, SummaryProviderNone:
	default:
		return fmt.Errorf("unknown summary provider %q", o.SummaryProvider)
	}
	if o.NoSpeechThreshold < 0 || o.NoSpeechThreshold > 1 {
		return fmt.Errorf("no-speech threshold must be within [0,1], got %v", o.NoSpeechThreshold)
	}
	if o.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	return nil
}

func WithContext(ctx context.Context) AppOption {
	return func(o *ApplicationConfig) {
		o.Context = ctx
	}
}

func WithRecordingsDir(dir string) AppOption {
	return func(o *ApplicationConfig) {
		o.RecordingsDir = dir
	}
}

func WithConnectTimeout(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

func WithSilenceDuration(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		if d > 0 {
			o.SilenceDuration = d
		}
	}
}

func WithSettleTimeout(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		o.SettleTimeout = d
	}
}

func WithDiscordToken(token string) AppOption {
	return func(o *ApplicationConfig) {
		o.DiscordToken = token
	}
}

func WithOpenAI(apiKey, baseURL string) AppOption {
	return func(o *ApplicationConfig) {
		o.OpenAIAPIKey = apiKey
		o.OpenAIBaseURL = baseURL
	}
}

func WithTranscriptionModel(model string) AppOption {
	return func(o *ApplicationConfig) {
		if model != "" {
			o.TranscriptionModel = model
		}
	}
}

func WithTranscriptionLanguage(lang string) AppOption {
	return func(o *ApplicationConfig) {
		o.TranscriptionLanguage = lang
	}
}

func WithTranscriptionMaxBytes(n int64) AppOption {
	return func(o *ApplicationConfig) {
		if n > 0 {
			o.TranscriptionMaxBytes = n
		}
	}
}

func WithNoSpeechThreshold(t float64) AppOption {
	return func(o *ApplicationConfig) {
		o.NoSpeechThreshold = t
	}
}

func WithSummaryProvider(provider, model string) AppOption {
	return func(o *ApplicationConfig) {
		if provider != "" {
			o.SummaryProvider = provider
		}
		if model != "" {
			o.SummaryModel = model
		}
	}
}

func WithAnthropic(apiKey, baseURL string) AppOption {
	return func(o *ApplicationConfig) {
		o.AnthropicAPIKey = apiKey
		o.AnthropicURL = baseURL
	}
}

func WithRetentionDays(days int) AppOption {
	return func(o *ApplicationConfig) {
		o.RetentionDays = days
	}
}

func WithMetricsAddress(addr string) AppOption {
	return func(o *ApplicationConfig) {
		o.MetricsAddress = addr
	}
}
