package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/schema"
	"github.com/sashabaranov/go-openai"
)

// ErrFileTooLarge is returned for clips above the upload limit.
var ErrFileTooLarge = errors.New("audio file exceeds transcription size limit")

// Transcriber turns one audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*schema.TranscriptionResult, error)
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions
// endpoint with the verbose_json response format.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
	maxBytes int64
}

func NewWhisperTranscriber(appConfig *config.ApplicationConfig) *WhisperTranscriber {
	cfg := openai.DefaultConfig(appConfig.OpenAIAPIKey)
	if appConfig.OpenAIBaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(appConfig.OpenAIBaseURL, "/")
	}
	return &WhisperTranscriber{
		client:   openai.NewClientWithConfig(cfg),
		model:    appConfig.TranscriptionModel,
		language: appConfig.TranscriptionLanguage,
		maxBytes: appConfig.TranscriptionMaxBytes,
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (*schema.TranscriptionResult, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if w.maxBytes > 0 && fi.Size() > w.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", path, fi.Size(), ErrFileTooLarge)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("transcription API returned %d (%s): %w", apiErr.HTTPStatusCode, http.StatusText(apiErr.HTTPStatusCode), err)
		}
		return nil, fmt.Errorf("transcribing %s: %w", path, err)
	}

	result := &schema.TranscriptionResult{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, schema.TranscriptionSegment{
			Id:           s.ID,
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return result, nil
}
