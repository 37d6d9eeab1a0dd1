package cli

import (
	"context"
	"fmt"

	cliContext "github.com/mudler/voxlog/core/cli/context"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/pipeline"
)

type MixCMD struct {
	Folder string `arg:"" type:"existingdir" help:"Session folder"`
}

func (m *MixCMD) Run(ctx *cliContext.Context) error {
	out, err := pipeline.NewMixer(nil).Mix(context.Background(), m.Folder)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

type TranscribeCMD struct {
	Folder string `arg:"" type:"existingdir" help:"Session folder"`

	PipelineFlags `embed:""`
}

func (t *TranscribeCMD) Run(ctx *cliContext.Context) error {
	p, err := newPipeline(t.PipelineFlags)
	if err != nil {
		return err
	}
	res, err := p.Assembler().Assemble(context.Background(), t.Folder)
	if err != nil {
		return err
	}
	fmt.Printf("transcript: %s (%d segments)\n", res.Path, res.Segments)
	if res.SummaryErr != nil {
		fmt.Printf("summary: failed (%v)\n", res.SummaryErr)
	} else {
		fmt.Printf("summary: %s\n", res.SummaryPath)
	}
	return nil
}

type ProcessCMD struct {
	Folder string `arg:"" type:"existingdir" help:"Session folder"`

	PipelineFlags `embed:""`
}

func (p *ProcessCMD) Run(ctx *cliContext.Context) error {
	pl, err := newPipeline(p.PipelineFlags)
	if err != nil {
		return err
	}
	report := pl.Process(context.Background(), p.Folder)
	fmt.Println(report.String())
	if report.MixErr != nil && report.TranscriptErr != nil {
		return fmt.Errorf("no artifact could be produced for %s", p.Folder)
	}
	return nil
}

func newPipeline(flags PipelineFlags) (*pipeline.Pipeline, error) {
	appConfig := config.NewApplicationConfig(flags.options()...)
	if err := appConfig.Validate(); err != nil {
		return nil, err
	}
	return pipeline.NewFromConfig(appConfig, nil)
}
