package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mudler/voxlog/core/backend"
	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/xlog"
)

// ErrSummaryDisabled is reported when no summarizer is configured.
var ErrSummaryDisabled = errors.New("summaries are disabled")

const summarySystemPrompt = `You summarize recorded voice conversations.
The input is an automatic speech-to-text transcript. Each line is "[mm:ss] speaker (confidence%): text".
Expect recognition artifacts: misheard words, missing punctuation, repeated fragments and filler.
Lines with low confidence are more likely to be wrong. Do not quote artifacts or invent content that is not supported by the transcript.

Write a concise summary in Markdown with these sections:
## Overview
## Key points
## Decisions
## Action items (with the responsible speaker when stated)
Leave a section out when the conversation gives nothing for it.`

// SummaryStage renders summary.md from a transcript.
type SummaryStage struct {
	summarizer backend.Summarizer
	now        func() time.Time
}

func NewSummaryStage(s backend.Summarizer) *SummaryStage {
	return &SummaryStage{summarizer: s, now: time.Now}
}

// Summarize writes the summary of transcript into folder and returns its path.
func (s *SummaryStage) Summarize(ctx context.Context, folder, transcript string) (string, error) {
	if s == nil || s.summarizer == nil {
		return "", ErrSummaryDisabled
	}
	summary, err := s.summarizer.Summarize(ctx, summarySystemPrompt, transcript)
	if err != nil {
		return "", fmt.Errorf("summarizing %s: %w", filepath.Base(folder), err)
	}

	var sb strings.Builder
	sb.WriteString("# Session Summary\n\n")
	fmt.Fprintf(&sb, "**Session:** %s\n\n", filepath.Base(folder))
	sb.WriteString(strings.TrimSpace(summary.Text))
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "*Generated %s with %s from the automatic transcript.*\n", s.now().UTC().Format(time.RFC3339), summary.Model)

	out := filepath.Join(folder, schema.SummaryName)
	if err := os.WriteFile(out, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	xlog.Info("Summary written", "path", out, "model", summary.Model)
	return out, nil
}
