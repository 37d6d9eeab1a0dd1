package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mudler/voxlog/core/backend"
	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/xlog"
)

// ErrNothingTranscribable is returned when no segment survives filtering.
var ErrNothingTranscribable = errors.New("no transcribable speech in session")

// TranscriptResult describes the transcript run and the summary it
// triggered.
type TranscriptResult struct {
	Path        string
	Segments    int
	SummaryPath string
	SummaryErr  error
}

// Assembler transcribes each clip and merges the results into one document.
type Assembler struct {
	transcriber backend.Transcriber
	summary     *SummaryStage
	filter      FilterOptions
	now         func() time.Time
}

// NewAssembler builds an Assembler. summary may be nil to skip summaries.
func NewAssembler(t backend.Transcriber, summary *SummaryStage, filter FilterOptions) *Assembler {
	return &Assembler{
		transcriber: t,
		summary:     summary,
		filter:      filter,
		now:         time.Now,
	}
}

// Transcribe writes transcript.md into folder and returns its path. A failing
// summary is only logged.
func (a *Assembler) Transcribe(ctx context.Context, folder string) (string, error) {
	res, err := a.Assemble(ctx, folder)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

func (a *Assembler) Assemble(ctx context.Context, folder string) (*TranscriptResult, error) {
	timeline, skipped, err := LoadTimeline(folder, false)
	if err != nil {
		return nil, err
	}
	for _, p := range skipped {
		xlog.Warn("Skipping clip with malformed timestamp", "path", p)
	}

	var segments []schema.Segment
	for _, clip := range timeline.Clips {
		res, err := a.transcriber.Transcribe(ctx, clip.Path)
		if err != nil {
			if errors.Is(err, backend.ErrFileTooLarge) {
				xlog.Warn("Skipping clip over the upload limit", "path", clip.Path, "error", err)
			} else {
				xlog.Error("Transcription failed for clip, skipping", "path", clip.Path, "error", err)
			}
			continue
		}
		segments = append(segments, FilterSegments(Rebase(clip.Speaker, clip.Offset, res), a.filter)...)
	}
	if len(segments) == 0 {
		return nil, ErrNothingTranscribable
	}
	merged := MergeSegments(segments)

	doc := RenderTranscript(TranscriptDocument{
		Folder:            folder,
		StartedAt:         timeline.Start,
		Duration:          a.now().Sub(timeline.Start),
		Segments:          merged,
		NoSpeechThreshold: a.filter.NoSpeechThreshold,
	})
	out := filepath.Join(folder, schema.TranscriptName)
	if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("writing transcript: %w", err)
	}
	xlog.Info("Transcript written", "path", out, "segments", len(merged))

	result := &TranscriptResult{Path: out, Segments: len(merged)}
	result.SummaryPath, result.SummaryErr = a.summary.Summarize(ctx, folder, doc)
	switch {
	case errors.Is(result.SummaryErr, ErrSummaryDisabled):
		xlog.Debug("Summary skipped", "folder", folder)
	case result.SummaryErr != nil:
		xlog.Error("Summary generation failed", "folder", folder, "error", result.SummaryErr)
	}
	return result, nil
}
