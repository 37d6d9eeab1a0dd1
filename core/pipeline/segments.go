package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mudler/voxlog/core/schema"
)

// FilterOptions decides which recognized segments are kept.
type FilterOptions struct {
	// NoSpeechThreshold drops segments whose no-speech probability is above it.
	NoSpeechThreshold float64
	MinRunes          int
	// MinDuration is in seconds.
	MinDuration float64
}

func DefaultFilter() FilterOptions {
	return FilterOptions{
		NoSpeechThreshold: 0.6,
		MinRunes:          2,
		MinDuration:       0.1,
	}
}

func (f FilterOptions) Keep(s schema.Segment) bool {
	if s.NoSpeechProb > f.NoSpeechThreshold {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Text)) < f.MinRunes {
		return false
	}
	return s.Duration() >= f.MinDuration
}

func FilterSegments(segments []schema.Segment, f FilterOptions) []schema.Segment {
	kept := make([]schema.Segment, 0, len(segments))
	for _, s := range segments {
		if f.Keep(s) {
			kept = append(kept, s)
		}
	}
	return kept
}

// Rebase attributes the backend segments of one clip to speaker and shifts
// them onto the session timeline by offset.
func Rebase(speaker string, offset time.Duration, res *schema.TranscriptionResult) []schema.Segment {
	if res == nil {
		return nil
	}
	base := offset.Seconds()
	segments := make([]schema.Segment, 0, len(res.Segments))
	for _, s := range res.Segments {
		segments = append(segments, schema.Segment{
			Speaker:      speaker,
			Text:         strings.TrimSpace(s.Text),
			Start:        base + s.Start,
			End:          base + s.End,
			Confidence:   math.Exp(s.AvgLogprob),
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return segments
}

// MergeSegments sorts by start and folds runs of the same speaker. Scores are
// re-averaged against each next member in turn, so a run of n values is not
// their mean.
func MergeSegments(segments []schema.Segment) []schema.Segment {
	if len(segments) == 0 {
		return []schema.Segment{}
	}
	sorted := append([]schema.Segment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := []schema.Segment{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if cur.Speaker != next.Speaker {
			merged = append(merged, next)
			continue
		}
		cur.Text = cur.Text + " " + next.Text
		cur.End = math.Max(cur.End, next.End)
		cur.Confidence = (cur.Confidence + next.Confidence) / 2
		cur.NoSpeechProb = (cur.NoSpeechProb + next.NoSpeechProb) / 2
	}
	return merged
}
