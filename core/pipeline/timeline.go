// Package pipeline rebuilds a finished session folder into a mixed track, a
// merged transcript and a summary.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/pkg/audio"
	"github.com/mudler/voxlog/pkg/timestamp"
)

// UnknownSpeaker labels clips whose filename carries no speaker suffix.
const UnknownSpeaker = "Unknown"

var (
	// ErrNoInput is returned when a session folder holds no clips.
	ErrNoInput = errors.New("no clips found in session folder")

	speakerSuffix = regexp.MustCompile(`^[^_]+_(.+)\.ogg$`)
)

// TimelineClip is a clip positioned on the session timeline.
type TimelineClip struct {
	Path      string
	Speaker   string
	StartedAt time.Time
	Offset    time.Duration
}

// Timeline is the set of clips of one folder, ordered by start time. Start
// is the earliest clip start, recomputed on every scan.
type Timeline struct {
	Start time.Time
	Clips []TimelineClip
}

// Span is the offset of the last clip start, the lower bound of the
// session length known without decoding audio.
func (t *Timeline) Span() time.Duration {
	if len(t.Clips) == 0 {
		return 0
	}
	return t.Clips[len(t.Clips)-1].Offset
}

// ListClips returns the clip files of folder sorted by name, leaving out the
// mixed timeline.
func ListClips(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var clips []string
	for _, e := range entries {
		if e.IsDir() || !audio.IsOgg(e.Name()) || e.Name() == schema.MixedTimelineName {
			continue
		}
		clips = append(clips, filepath.Join(folder, e.Name()))
	}
	sort.Strings(clips)
	return clips, nil
}

// SpeakerFromFilename returns the sanitized speaker suffix of a clip name.
func SpeakerFromFilename(name string) string {
	m := speakerSuffix.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return UnknownSpeaker
	}
	return m[1]
}

// ParseClip decodes the start time and speaker of the clip at path.
func ParseClip(path string) (TimelineClip, error) {
	start, err := timestamp.Decode(filepath.Base(path))
	if err != nil {
		return TimelineClip{}, fmt.Errorf("clip %s: %w", filepath.Base(path), err)
	}
	return TimelineClip{
		Path:      path,
		Speaker:   SpeakerFromFilename(path),
		StartedAt: start,
	}, nil
}

// NewTimeline sorts clips by start time and computes their offsets.
func NewTimeline(clips []TimelineClip) *Timeline {
	t := &Timeline{Clips: append([]TimelineClip(nil), clips...)}
	if len(t.Clips) == 0 {
		return t
	}
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].StartedAt.Before(t.Clips[j].StartedAt)
	})
	t.Start = t.Clips[0].StartedAt
	for i := range t.Clips {
		t.Clips[i].Offset = t.Clips[i].StartedAt.Sub(t.Start)
	}
	return t
}

// LoadTimeline scans folder. With strict set, a clip without a valid
// timestamp fails the load; otherwise it is returned in skipped.
func LoadTimeline(folder string, strict bool) (timeline *Timeline, skipped []string, err error) {
	paths, err := ListClips(folder)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, ErrNoInput
	}
	var clips []TimelineClip
	for _, p := range paths {
		c, err := ParseClip(p)
		if err != nil {
			if strict {
				return nil, nil, err
			}
			skipped = append(skipped, p)
			continue
		}
		clips = append(clips, c)
	}
	if len(clips) == 0 {
		return nil, skipped, ErrNoInput
	}
	return NewTimeline(clips), skipped, nil
}
