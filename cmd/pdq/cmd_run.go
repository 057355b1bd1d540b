package main

import (
	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
)

var runFlags struct {
	pipelinePath string
	stateDir     string
	decide       string
	concurrency  int
	drawPath     string
	metricsAddr  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline file from its heads",
	Long: "Run a pipeline file from its heads. When a detector pauses the run, the\n" +
		"decision is prompted, taken automatically, or the run is saved for 'pdq resume'.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.pipelinePath, "file", "f", "", "Pipeline file (required)")
	f.StringVar(&runFlags.stateDir, "state", "", "Directory where a paused run is saved")
	f.StringVar(&runFlags.decide, "decide", "save", "On pause: save, prompt, apply or discard")
	f.IntVar(&runFlags.concurrency, "concurrency", 1, "Ready nodes run at the same time")
	f.StringVar(&runFlags.drawPath, "draw", "", "Write the DOT rendering of the run to this file")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, _ []string) error {
	decider, err := deciderFor(runFlags.decide, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a, err := newApp(cmd, app.Config{
		PipelinePath: runFlags.pipelinePath,
		StateDir:     runFlags.stateDir,
		Concurrency:  runFlags.concurrency,
		DrawPath:     runFlags.drawPath,
		MetricsAddr:  runFlags.metricsAddr,
	})
	if err != nil {
		return err
	}
	ctx := a.Context(cmd.Context())
	stop := a.ServeMetrics(ctx)
	defer func() { _ = stop() }()

	s, err := a.Start(ctx)
	if err != nil {
		return err
	}
	if decider != nil {
		err = s.Drive(ctx, decider)
	} else {
		err = s.Run(ctx)
	}

	return finish(ctx, cmd.OutOrStdout(), a, s, err)
}
