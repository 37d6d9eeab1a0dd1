package audio

import (
	"path/filepath"
	"strings"
)

// Every clip and mixed track is Opus in an Ogg container with this layout.
const (
	SampleRate = 48000
	Channels   = 2
	Extension  = ".ogg"
)

// IsOgg reports whether path carries the clip extension.
func IsOgg(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
