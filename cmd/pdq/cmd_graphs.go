package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/askiada/go-pdq/internal/app"
	"github.com/askiada/go-pdq/pkg/dataio"
)

var graphsCmd = &cobra.Command{
	Use:   "graphs",
	Short: "List the graphs saved in the store",
	RunE:  runGraphs,
}

func runGraphs(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, app.Config{})
	if err != nil {
		return err
	}
	ctx := a.Context(cmd.Context())
	records, err := a.Store().List(ctx)
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{rec.ID, rec.Name, rec.Created.Format(time.RFC3339), rec.Modified.Format(time.RFC3339)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), dataio.RenderRows([]string{"ID", "Name", "Created", "Modified"}, rows, dataio.ASCII))

	return nil
}
