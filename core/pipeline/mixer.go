package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/pkg/audio"
	"github.com/mudler/voxlog/pkg/utils"
	"github.com/mudler/xlog"
	"github.com/otiai10/copy"
)

// Mixer overlays every clip of a folder at its timeline offset.
type Mixer struct {
	ffmpeg utils.FFmpegRunner
}

// NewMixer uses the ffmpeg binary from PATH when runner is nil.
func NewMixer(runner utils.FFmpegRunner) *Mixer {
	if runner == nil {
		runner = utils.FFmpeg
	}
	return &Mixer{ffmpeg: runner}
}

// Mix writes mixed_timeline.ogg into folder and returns its path.
func (m *Mixer) Mix(ctx context.Context, folder string) (string, error) {
	timeline, _, err := LoadTimeline(folder, true)
	if err != nil {
		return "", err
	}
	out := filepath.Join(folder, schema.MixedTimelineName)
	tmp := out + ".partial"

	if len(timeline.Clips) == 1 {
		if err := copy.Copy(timeline.Clips[0].Path, tmp); err != nil {
			os.Remove(tmp)
			return "", fmt.Errorf("copying single clip: %w", err)
		}
		if err := os.Rename(tmp, out); err != nil {
			os.Remove(tmp)
			return "", err
		}
		xlog.Info("Single clip, copied as timeline", "path", out)
		return out, nil
	}

	output, err := m.ffmpeg(ctx, MixArgs(timeline, tmp)...)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("ffmpeg mix failed: %w out: %s", err, output)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", err
	}
	xlog.Info("Mixed timeline written", "path", out, "clips", len(timeline.Clips), "span", timeline.Span())
	return out, nil
}

// MixArgs builds the ffmpeg arguments placing each clip at its offset.
func MixArgs(timeline *Timeline, dst string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	delays := make([]int64, 0, len(timeline.Clips))
	for _, c := range timeline.Clips {
		args = append(args, "-i", ffmpegPath(c.Path))
		delays = append(delays, c.Offset.Milliseconds())
	}
	return append(args,
		"-filter_complex", utils.MixFilterGraph(delays),
		"-map", "[out]",
		"-ac", strconv.Itoa(audio.Channels),
		"-ar", strconv.Itoa(audio.SampleRate),
		"-c:a", "libopus",
		"-f", "ogg",
		ffmpegPath(dst),
	)
}

// ffmpegPath makes path absolute. A relative clip name such as
// "2024-05-01T18:02:11.042Z_alice.ogg" would otherwise be read by ffmpeg as
// a URL with the scheme "2024-05-01T18".
func ffmpegPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return "file:" + path
}
