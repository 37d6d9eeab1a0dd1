package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mudler/voxlog/core/config"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrEmptySummary is returned when the model answered with no text.
var ErrEmptySummary = errors.New("summary backend returned no text")

// Summary is a model answer and the model identifier the backend reported.
type Summary struct {
	Text  string
	Model string
}

type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, transcript string) (*Summary, error)
}

// NewSummarizer builds the provider selected in appConfig. It returns nil
// when summaries are disabled.
func NewSummarizer(appConfig *config.ApplicationConfig) (Summarizer, error) {
	switch appConfig.SummaryProvider {
	case config.SummaryProviderNone:
		return nil, nil
	case config.SummaryProviderAnthropic:
		if appConfig.AnthropicAPIKey == "" {
			return nil, errors.New("anthropic API key not set: set VOXLOG_ANTHROPIC_API_KEY")
		}
		return NewAnthropicSummarizer(appConfig), nil
	case config.SummaryProviderOpenAI:
		return NewOpenAISummarizer(appConfig), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", appConfig.SummaryProvider)
	}
}

type OpenAISummarizer struct {
	client openai.Client
	model  string
}

func NewOpenAISummarizer(appConfig *config.ApplicationConfig) *OpenAISummarizer {
	opts := []option.RequestOption{option.WithAPIKey(appConfig.OpenAIAPIKey)}
	if appConfig.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(appConfig.OpenAIBaseURL, "/")+"/"))
	}
	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  appConfig.SummaryModel,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, systemPrompt, transcript string) (*Summary, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript),
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptySummary
	}
	return &Summary{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

type AnthropicSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicSummarizer(appConfig *config.ApplicationConfig) *AnthropicSummarizer {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(appConfig.AnthropicAPIKey)}
	if appConfig.AnthropicURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(appConfig.AnthropicURL))
	}
	return &AnthropicSummarizer{
		client:    anthropic.NewClient(opts...),
		model:     appConfig.SummaryModel,
		maxTokens: 4096,
	}
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, systemPrompt, transcript string) (*Summary, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, ErrEmptySummary
	}
	return &Summary{Text: sb.String(), Model: string(msg.Model)}, nil
}
