package main

import (
	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
)

var statusFlags struct {
	stateDir string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node states and pending candidates of a saved run",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.stateDir, "state", "", "Directory of the saved run (required)")

	_ = statusCmd.MarkFlagRequired("state")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, app.Config{StateDir: statusFlags.stateDir})
	if err != nil {
		return err
	}
	s, err := a.Restore(a.Context(cmd.Context()))
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), s)

	return nil
}
