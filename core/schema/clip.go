package schema

import (
	"path/filepath"
	"time"

	"github.com/mudler/voxlog/pkg/audio"
	"github.com/mudler/voxlog/pkg/timestamp"
	"github.com/mudler/voxlog/pkg/utils"
)

// Well-known artifact names inside a session folder.
const (
	MixedTimelineName = "mixed_timeline" + audio.Extension
	TranscriptName    = "transcript.md"
	SummaryName       = "summary.md"
)

// Clip is one speaker's continuous utterance. The filename carries the only
// authoritative record of StartedAt.
type Clip struct {
	SpeakerID   string        `json:"speaker_id"`
	SpeakerName string        `json:"speaker_name"`
	StartedAt   time.Time     `json:"started_at"`
	Path        string        `json:"path"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// ClipFilename returns "<ISO start>_<sanitized speaker>.ogg".
func ClipFilename(startedAt time.Time, speaker string) string {
	return timestamp.Encode(startedAt, timestamp.File) + "_" + utils.SanitizeFilename(speaker) + audio.Extension
}

// ClipPath joins ClipFilename onto folder.
func ClipPath(folder string, startedAt time.Time, speaker string) string {
	return filepath.Join(folder, ClipFilename(startedAt, speaker))
}

// SessionFolder returns the storage folder for a session started at startedAt.
func SessionFolder(recordingsDir string, startedAt time.Time) string {
	return filepath.Join(recordingsDir, timestamp.Encode(startedAt, timestamp.Folder))
}
