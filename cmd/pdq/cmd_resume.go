package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

var resumeFlags struct {
	stateDir    string
	node        string
	decision    string
	mappings    []string
	decide      string
	concurrency int
	drawPath    string
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Answer the candidates of a paused run and continue it",
	RunE:  runResume,
}

func init() {
	f := resumeCmd.Flags()
	f.StringVar(&resumeFlags.stateDir, "state", "", "Directory of the saved run (required)")
	f.StringVar(&resumeFlags.node, "node", "", "Paused node, the node the run is paused at by default")
	f.StringVar(&resumeFlags.decision, "decision", "", "apply or discard (required)")
	f.StringArrayVar(&resumeFlags.mappings, "map", nil, "original=replacement to apply, every candidate when absent")
	f.StringVar(&resumeFlags.decide, "decide", "save", "On a later pause: save, prompt, apply or discard")
	f.IntVar(&resumeFlags.concurrency, "concurrency", 1, "Ready nodes run at the same time")
	f.StringVar(&resumeFlags.drawPath, "draw", "", "Write the DOT rendering of the run to this file")

	_ = resumeCmd.MarkFlagRequired("state")
	_ = resumeCmd.MarkFlagRequired("decision")
}

func runResume(cmd *cobra.Command, _ []string) error {
	decider, err := deciderFor(resumeFlags.decide, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a, err := newApp(cmd, app.Config{
		StateDir:    resumeFlags.stateDir,
		Concurrency: resumeFlags.concurrency,
		DrawPath:    resumeFlags.drawPath,
	})
	if err != nil {
		return err
	}
	ctx := a.Context(cmd.Context())

	s, err := a.Restore(ctx)
	if err != nil {
		return err
	}
	node := resumeFlags.node
	if node == "" {
		node = s.PausedAt()
	}
	if node == "" {
		return errors.Errorf("run is %s, nothing to resume", s.Status())
	}
	decision, err := parseDecision(resumeFlags.decision, resumeFlags.mappings, s.Candidates(node))
	if err != nil {
		return err
	}

	err = s.Resume(ctx, node, decision)
	if err == nil && decider != nil && s.Status() == model.RunPaused {
		err = s.Drive(ctx, decider)
	}

	return finish(ctx, cmd.OutOrStdout(), a, s, err)
}
