package utils

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegRunner executes ffmpeg with the given arguments and returns its
// combined output.
type FFmpegRunner func(ctx context.Context, args ...string) (string, error)

// FFmpeg is the default FFmpegRunner, running the ffmpeg binary from PATH.
func FFmpeg(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...) // Constrain this to ffmpeg to permit security scanner to see that the command is safe.
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// AdelayFilter builds the ffmpeg adelay argument delaying both channels by ms.
func AdelayFilter(ms int64) string {
	return fmt.Sprintf("adelay=%d|%d", ms, ms)
}

// MixFilterGraph returns a filter_complex graph that delays every input by
// its offset and sums them without normalization; the result is labelled
// [out].
func MixFilterGraph(delaysMs []int64) string {
	var sb strings.Builder
	for i, d := range delaysMs {
		fmt.Fprintf(&sb, "[%d:a]%s[a%d];", i, AdelayFilter(d), i)
	}
	for i := range delaysMs {
		fmt.Fprintf(&sb, "[a%d]", i)
	}
	fmt.Fprintf(&sb, "amix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[out]", len(delaysMs))
	return sb.String()
}
