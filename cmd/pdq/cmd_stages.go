package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
	"github.com/askiada/go-pdq/pkg/dataio"
)

var stagesFlags struct {
	format string
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the stage types usable in a pipeline file",
	RunE:  runStages,
}

func init() {
	stagesCmd.Flags().StringVar(&stagesFlags.format, "format", "ascii", "Table format: ascii or markdown")
}

func runStages(cmd *cobra.Command, _ []string) error {
	format, err := dataio.ParseFormat(stagesFlags.format)
	if err != nil {
		return err
	}
	a, err := newApp(cmd, app.Config{})
	if err != nil {
		return err
	}

	rows := [][]any{}
	for _, typ := range a.Registry().Types() {
		stage := typ.New()
		rows = append(rows, []any{typ.ID, stage.Kind(), strings.Join(stage.Options().Keys(), ", "), typ.Description})
	}
	fmt.Fprintln(cmd.OutOrStdout(), dataio.RenderRows([]string{"Type", "Kind", "Options", "Description"}, rows, format))

	return nil
}
