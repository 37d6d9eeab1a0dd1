package audio

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/mudler/xlog"
)

// contentTypeFromFileType returns the MIME type for tag.FileType.
func contentTypeFromFileType(ft tag.FileType) string {
	switch ft {
	case tag.FLAC:
		return "audio/flac"
	case tag.MP3:
		return "audio/mpeg"
	case tag.OGG:
		return "audio/ogg"
	case tag.M4A, tag.ALAC:
		return "audio/mp4"
	default:
		return ""
	}
}

// Identify reads from r and returns the detected Content-Type, or "" if the
// format could not be identified.
func Identify(r io.ReadSeeker) (string, error) {
	_, fileType, err := tag.Identify(r)
	if err != nil || fileType == tag.UnknownFileType {
		return "", err
	}
	return contentTypeFromFileType(fileType), nil
}

// ContentTypeFromExtension returns the MIME type for common audio file extensions.
func ContentTypeFromExtension(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "flac":
		return "audio/flac"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	default:
		return ""
	}
}

// DetectContentType sniffs the container of the file at path, falling back
// to its extension when the stream is truncated or unrecognized (a clip cut
// short by a disconnect still has a valid name).
func DetectContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ContentTypeFromExtension(path)
	}
	defer f.Close()

	ct, err := Identify(f)
	if err != nil || ct == "" {
		xlog.Debug("Could not identify audio container, using extension", "path", path, "error", err)
		return ContentTypeFromExtension(path)
	}
	return ct
}
