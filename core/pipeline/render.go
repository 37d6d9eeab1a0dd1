package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/mudler/voxlog/core/schema"
)

const transcriptTitle = "# Voice Session Transcript"

// FormatClock renders seconds as mm:ss. Minutes are not wrapped into hours.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// TranscriptDocument holds what RenderTranscript prints.
type TranscriptDocument struct {
	Folder            string
	StartedAt         time.Time
	Duration          time.Duration
	Segments          []schema.Segment
	NoSpeechThreshold float64
}

func RenderTranscript(doc TranscriptDocument) string {
	var sb strings.Builder
	sb.WriteString(transcriptTitle + "\n\n")
	fmt.Fprintf(&sb, "**Session:** %s\n", filepath.Base(doc.Folder))
	fmt.Fprintf(&sb, "**Started:** %s\n", doc.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Duration:** %s\n", FormatClock(doc.Duration.Seconds()))
	fmt.Fprintf(&sb, "**Segments:** %d\n\n", len(doc.Segments))
	sb.WriteString("---\n\n")
	for _, s := range doc.Segments {
		fmt.Fprintf(&sb, "[%s] %s (%d%%): %s\n\n", FormatClock(s.Start), s.Speaker, int(math.Round(s.Confidence*100)), s.Text)
	}
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "*Transcribed automatically. Segments with no-speech probability above %d%% were discarded.*\n",
		int(math.Round(doc.NoSpeechThreshold*100)))
	return sb.String()
}
