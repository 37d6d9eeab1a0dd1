package cli

import (
	cliContext "github.com/mudler/voxlog/core/cli/context"
)

var CLI struct {
	cliContext.Context `embed:""`

	Record     RecordCMD     `cmd:"" help:"Join a voice channel and record every speaker until interrupted"`
	Process    ProcessCMD    `cmd:"" help:"Mix, transcribe and summarize a session folder"`
	Mix        MixCMD        `cmd:"" help:"Rebuild the mixed timeline of a session folder"`
	Transcribe TranscribeCMD `cmd:"" help:"Transcribe a session folder (and summarize it)"`
	List       ListCMD       `cmd:"" help:"List recorded sessions and their artifacts"`
	Clips      ClipsCMD      `cmd:"" help:"Show the clips of a session on its timeline"`
	Show       ShowCMD       `cmd:"" help:"Render the transcript or summary of a session"`
}
