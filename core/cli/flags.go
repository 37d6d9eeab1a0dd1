package cli

import (
	"github.com/mudler/voxlog/core/config"
)

// PipelineFlags configure the transcription and summary backends.
type PipelineFlags struct {
	OpenAIAPIKey          string  `env:"VOXLOG_OPENAI_API_KEY,OPENAI_API_KEY" help:"API key for the OpenAI-compatible endpoint" group:"transcription"`
	OpenAIBaseURL         string  `env:"VOXLOG_OPENAI_BASE_URL,OPENAI_BASE_URL" help:"Base URL of an OpenAI-compatible API, e.g. a LocalAI instance (http://localhost:8080/v1)" group:"transcription"`
	TranscriptionModel    string  `env:"VOXLOG_TRANSCRIPTION_MODEL" default:"whisper-1" help:"Speech-to-text model" group:"transcription"`
	Language              string  `env:"VOXLOG_LANGUAGE" help:"Language hint for transcription (ISO-639-1)" group:"transcription"`
	TranscriptionMaxBytes int64   `env:"VOXLOG_TRANSCRIPTION_MAX_BYTES" default:"26214400" help:"Clips larger than this are not uploaded" group:"transcription"`
	NoSpeechThreshold     float64 `env:"VOXLOG_NO_SPEECH_THRESHOLD" default:"0.6" help:"Drop segments whose no-speech probability is above this" group:"transcription"`

	SummaryProvider  string `env:"VOXLOG_SUMMARY_PROVIDER" default:"openai" enum:"openai,anthropic,none" help:"Summary backend [${enum}]" group:"summary"`
	SummaryModel     string `env:"VOXLOG_SUMMARY_MODEL" default:"gpt-4o-mini" help:"Model used for summaries" group:"summary"`
	AnthropicAPIKey  string `env:"VOXLOG_ANTHROPIC_API_KEY,ANTHROPIC_API_KEY" help:"Anthropic API key" group:"summary"`
	AnthropicBaseURL string `env:"VOXLOG_ANTHROPIC_BASE_URL" help:"Anthropic API base URL" group:"summary"`
}

func (f *PipelineFlags) options() []config.AppOption {
	return []config.AppOption{
		config.WithOpenAI(f.OpenAIAPIKey, f.OpenAIBaseURL),
		config.WithTranscriptionModel(f.TranscriptionModel),
		config.WithTranscriptionLanguage(f.Language),
		config.WithTranscriptionMaxBytes(f.TranscriptionMaxBytes),
		config.WithNoSpeechThreshold(f.NoSpeechThreshold),
		config.WithSummaryProvider(f.SummaryProvider, f.SummaryModel),
		config.WithAnthropic(f.AnthropicAPIKey, f.AnthropicBaseURL),
	}
}
