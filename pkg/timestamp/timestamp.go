// Package timestamp converts capture times to and from the two textual forms
// used on disk: session folder names and clip filename prefixes.
package timestamp

import (
	"fmt"
	"regexp"
	"time"
)

type Mode int

const (
	// Folder renders YYYY-MM-DD_HH-mm-ss-SSS, safe for every filesystem.
	Folder Mode = iota
	// File renders the UTC ISO-8601 form YYYY-MM-DDTHH:mm:ss.SSSZ.
	File
)

const (
	folderLayout = "2006-01-02_15-04-05"
	fileLayout   = "2006-01-02T15:04:05.000Z"
)

var (
	filePrefix    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z`)
	folderPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}-\d{3}$`)
)

// ParseError is returned when a name does not carry a valid timestamp.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid timestamp in %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid timestamp in %q", e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Encode renders t in UTC with millisecond precision.
func Encode(t time.Time, mode Mode) string {
	t = t.UTC()
	if mode == Folder {
		return fmt.Sprintf("%s-%03d", t.Format(folderLayout), t.Nanosecond()/int(time.Millisecond))
	}
	return t.Format(fileLayout)
}

// Decode extracts the File-mode prefix of name, e.g. a clip filename such as
// "2024-05-01T18:02:11.042Z_alice.ogg".
func Decode(name string) (time.Time, error) {
	prefix := filePrefix.FindString(name)
	if prefix == "" {
		return time.Time{}, &ParseError{Input: name}
	}
	t, err := time.Parse(fileLayout, prefix)
	if err != nil {
		return time.Time{}, &ParseError{Input: name, Err: err}
	}
	return t.UTC(), nil
}

// DecodeFolder is the inverse of Encode(t, Folder).
func DecodeFolder(name string) (time.Time, error) {
	if !folderPattern.MatchString(name) {
		return time.Time{}, &ParseError{Input: name}
	}
	// the trailing millisecond field is joined with '-', swap it for '.' so the
	// stdlib layout can consume it
	normalized := name[:len(name)-4] + "." + name[len(name)-3:]
	t, err := time.Parse(folderLayout+".000", normalized)
	if err != nil {
		return time.Time{}, &ParseError{Input: name, Err: err}
	}
	return t.UTC(), nil
}
