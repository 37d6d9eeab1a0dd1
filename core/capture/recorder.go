package capture

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/voxlog/pkg/audio"
	"github.com/mudler/xlog"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// maxNameCollisions is how many times a clip start is nudged forward by one
// millisecond when its filename is already taken.
const maxNameCollisions = 10

// ClipResult is delivered once per subscription. Clip is nil when no packet
// was ever received.
type ClipResult struct {
	Speaker ResolvedSpeaker
	Clip    *schema.Clip
	Err     error
}

// ClipRecorder writes one speaker subscription to an Ogg/Opus file.
type ClipRecorder struct {
	folder  string
	speaker ResolvedSpeaker
	resolve func() ResolvedSpeaker
	sub     voice.Subscription
	now     func() time.Time
}

func NewClipRecorder(folder string, speaker ResolvedSpeaker, sub voice.Subscription) *ClipRecorder {
	return &ClipRecorder{
		folder:  folder,
		speaker: speaker,
		sub:     sub,
		now:     time.Now,
	}
}

// ResolveWith defers the speaker lookup until the first packet has been
// timestamped, so a slow lookup does not shift the clip on the timeline.
func (r *ClipRecorder) ResolveWith(resolve func() ResolvedSpeaker) *ClipRecorder {
	r.resolve = resolve
	return r
}

// Run consumes the subscription until it ends. It always drains the packet
// stream, even after a write error, so the upstream never blocks on it.
func (r *ClipRecorder) Run() ClipResult {
	result := ClipResult{Speaker: r.speaker}

	var (
		writer *oggwriter.OggWriter
		clip   *schema.Clip
	)
	for pkt := range r.sub.Packets() {
		if result.Err != nil {
			continue
		}
		if clip == nil {
			start := r.now()
			if r.resolve != nil {
				r.speaker = r.resolve()
				result.Speaker = r.speaker
			}
			c, w, err := r.open(start)
			clip = c
			if err != nil {
				result.Err = err
				xlog.Error("Failed to start clip", "speaker", r.speaker.Name, "error", err)
				continue
			}
			writer = w
			xlog.Debug("Recording clip", "speaker", r.speaker.Name, "path", clip.Path)
		}
		if err := writer.WriteRTP(pkt); err != nil {
			result.Err = fmt.Errorf("writing packet to %s: %w", clip.Path, err)
			xlog.Error("Failed to write voice packet", "path", clip.Path, "error", err)
		}
	}

	if clip == nil {
		return result
	}
	clip.Duration = r.now().Sub(clip.StartedAt)
	if writer != nil {
		if err := writer.Close(); err != nil && result.Err == nil {
			result.Err = fmt.Errorf("closing %s: %w", clip.Path, err)
		}
	}
	if clip.Path != "" {
		result.Clip = clip
	}
	return result
}

func (r *ClipRecorder) open(start time.Time) (*schema.Clip, *oggwriter.OggWriter, error) {
	clip := &schema.Clip{
		SpeakerID:   r.speaker.ID,
		SpeakerName: r.speaker.Name,
	}
	for i := 0; i < maxNameCollisions; i++ {
		path := schema.ClipPath(r.folder, start, r.speaker.Name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			start = start.Add(time.Millisecond)
			continue
		}
		clip.StartedAt = start
		if err != nil {
			return clip, nil, fmt.Errorf("creating clip file: %w", err)
		}
		// The exclusive create reserves the name; the writer reopens it so
		// the final page can be flagged end-of-stream on Close.
		f.Close()
		clip.Path = path
		w, err := oggwriter.New(path, audio.SampleRate, audio.Channels)
		if err != nil {
			return clip, nil, fmt.Errorf("opening ogg stream %s: %w", path, err)
		}
		return clip, w, nil
	}
	clip.StartedAt = start
	return clip, nil, fmt.Errorf("no free clip filename for %s near %s", r.speaker.Name, start)
}
