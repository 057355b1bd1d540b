package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
)

var drawFlags struct {
	pipelinePath string
	stateDir     string
	output       string
}

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Render a pipeline file or a saved run as a DOT graph",
	RunE:  runDraw,
}

func init() {
	f := drawCmd.Flags()
	f.StringVarP(&drawFlags.pipelinePath, "file", "f", "", "Pipeline file")
	f.StringVar(&drawFlags.stateDir, "state", "", "Directory of a saved run, drawn with its node states")
	f.StringVarP(&drawFlags.output, "output", "o", "", "DOT output file (required)")

	_ = drawCmd.MarkFlagRequired("output")
}

func runDraw(cmd *cobra.Command, _ []string) error {
	if (drawFlags.pipelinePath == "") == (drawFlags.stateDir == "") {
		return errors.New("exactly one of --file and --state is required")
	}
	a, err := newApp(cmd, app.Config{
		PipelinePath: drawFlags.pipelinePath,
		StateDir:     drawFlags.stateDir,
		DrawPath:     drawFlags.output,
	})
	if err != nil {
		return err
	}
	ctx := a.Context(cmd.Context())

	var s *app.Session
	if drawFlags.stateDir != "" {
		s, err = a.Restore(ctx)
	} else {
		s, err = a.Start(ctx)
	}
	if err != nil {
		return err
	}

	return s.Draw()
}
