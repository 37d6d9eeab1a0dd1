package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	cliContext "github.com/mudler/voxlog/core/cli/context"
	"github.com/mudler/voxlog/core/pipeline"
	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/pkg/audio"
	"github.com/mudler/voxlog/pkg/timestamp"
)

type ListCMD struct {
	RecordingsDir string `arg:"" optional:"" env:"VOXLOG_RECORDINGS_DIR" type:"path" default:"${basepath}/recordings" help:"Recordings directory"`
}

func (l *ListCMD) Run(ctx *cliContext.Context) error {
	entries, err := os.ReadDir(l.RecordingsDir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() > entries[j].Name() })

	found := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		started, err := timestamp.DecodeFolder(e.Name())
		if err != nil {
			continue
		}
		folder := filepath.Join(l.RecordingsDir, e.Name())
		clips, _ := pipeline.ListClips(folder)
		fmt.Printf("%s  %s  %3d clips  %s\n", e.Name(), started.Local().Format("2006-01-02 15:04"), len(clips), artifacts(folder))
		found++
	}
	if found == 0 {
		fmt.Printf("No sessions in %s\n", l.RecordingsDir)
	}
	return nil
}

func artifacts(folder string) string {
	mark := func(name, label string) string {
		if _, err := os.Stat(filepath.Join(folder, name)); err == nil {
			return "[" + label + "]"
		}
		return "[" + strings.Repeat("-", len(label)) + "]"
	}
	return mark(schema.MixedTimelineName, "mix") + " " +
		mark(schema.TranscriptName, "transcript") + " " +
		mark(schema.SummaryName, "summary")
}

type ClipsCMD struct {
	Folder string `arg:"" type:"existingdir" help:"Session folder"`
}

func (c *ClipsCMD) Run(ctx *cliContext.Context) error {
	timeline, skipped, err := pipeline.LoadTimeline(c.Folder, false)
	if err != nil {
		return err
	}
	fmt.Printf("Session start: %s\n\n", timeline.Start.Format("2006-01-02T15:04:05.000Z07:00"))
	for _, clip := range timeline.Clips {
		var size int64
		if fi, err := os.Stat(clip.Path); err == nil {
			size = fi.Size()
		}
		fmt.Printf("+%9.3fs  %-24s %8d bytes  %s\n", clip.Offset.Seconds(), clip.Speaker, size, audio.DetectContentType(clip.Path))
	}
	for _, p := range skipped {
		fmt.Printf("skipped %s: malformed timestamp\n", filepath.Base(p))
	}
	return nil
}

type ShowCMD struct {
	Folder  string `arg:"" type:"existingdir" help:"Session folder"`
	Summary bool   `short:"s" help:"Show the summary instead of the transcript"`
}

func (s *ShowCMD) Run(ctx *cliContext.Context) error {
	name := schema.TranscriptName
	if s.Summary {
		name = schema.SummaryName
	}
	data, err := os.ReadFile(filepath.Join(s.Folder, name))
	if err != nil {
		return err
	}

	renderMode := "dark"
	if os.Getenv("COLOR") != "" {
		renderMode = os.Getenv("COLOR")
	}
	out, err := glamour.Render(string(data), renderMode)
	if err == nil && os.Getenv("NO_COLOR") == "" {
		fmt.Println(out)
	} else {
		fmt.Println(string(data))
	}
	return nil
}
