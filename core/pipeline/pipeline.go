package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mudler/voxlog/core/backend"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/metrics"
	"github.com/mudler/xlog"
)

// Report tells which artifacts a run produced. A stage that failed has an
// empty path and a non-nil error.
type Report struct {
	Folder string

	Mixed  string
	MixErr error

	Transcript    string
	TranscriptErr error

	Summary    string
	SummaryErr error
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:", r.Folder)
	line := func(name, path string, err error) {
		if err != nil {
			fmt.Fprintf(&sb, "\n  %s: failed (%v)", name, err)
			return
		}
		fmt.Fprintf(&sb, "\n  %s: %s", name, path)
	}
	line("mix", r.Mixed, r.MixErr)
	line("transcript", r.Transcript, r.TranscriptErr)
	line("summary", r.Summary, r.SummaryErr)
	return sb.String()
}

// Pipeline runs the post-processing stages of one folder in order.
type Pipeline struct {
	mixer     *Mixer
	assembler *Assembler
	metrics   *metrics.Metrics
}

func New(mixer *Mixer, assembler *Assembler, m *metrics.Metrics) *Pipeline {
	return &Pipeline{mixer: mixer, assembler: assembler, metrics: m}
}

// NewFromConfig wires the ffmpeg mixer and the configured backends.
func NewFromConfig(appConfig *config.ApplicationConfig, m *metrics.Metrics) (*Pipeline, error) {
	summarizer, err := backend.NewSummarizer(appConfig)
	if err != nil {
		return nil, err
	}
	var stage *SummaryStage
	if summarizer != nil {
		stage = NewSummaryStage(summarizer)
	}
	filter := DefaultFilter()
	filter.NoSpeechThreshold = appConfig.NoSpeechThreshold

	return New(
		NewMixer(nil),
		NewAssembler(backend.NewWhisperTranscriber(appConfig), stage, filter),
		m,
	), nil
}

func (p *Pipeline) Mixer() *Mixer {
	return p.mixer
}

func (p *Pipeline) Assembler() *Assembler {
	return p.assembler
}

// Process mixes, then transcribes regardless of the mix outcome. The
// summary only runs after a transcript was written. Stage errors end up in
// the Report.
func (p *Pipeline) Process(ctx context.Context, folder string) Report {
	report := Report{Folder: folder}

	start := time.Now()
	report.Mixed, report.MixErr = p.mixer.Mix(ctx, folder)
	p.metrics.ObserveStage("mix", time.Since(start), report.MixErr)
	if report.MixErr != nil {
		xlog.Error("Mixing failed", "folder", folder, "error", report.MixErr)
	}

	start = time.Now()
	res, err := p.assembler.Assemble(ctx, folder)
	p.metrics.ObserveStage("transcribe", time.Since(start), err)
	if err != nil {
		xlog.Error("Transcription failed", "folder", folder, "error", err)
		report.TranscriptErr = err
		report.SummaryErr = fmt.Errorf("no transcript: %w", err)
		return report
	}
	report.Transcript = res.Path
	report.Summary, report.SummaryErr = res.SummaryPath, res.SummaryErr
	return report
}
