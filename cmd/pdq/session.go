package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/internal/app"
	"github.com/askiada/go-pdq/pkg/dataio"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// finish draws and saves the session, then prints where the run stands.
// runErr is returned unless finishing fails first.
func finish(ctx context.Context, out io.Writer, a *app.App, s *app.Session, runErr error) error {
	if err := s.Draw(); err != nil {
		return err
	}
	paused := s.Status() == model.RunPaused
	if a.Config().StateDir != "" {
		if err := s.Save(ctx); err != nil {
			return err
		}
	} else if paused {
		return errors.Errorf("run paused at node %s, set --state to keep it", s.PausedAt())
	}

	printStatus(out, s)
	if paused {
		fmt.Fprintf(out, "Resume with 'pdq resume --state %s --decision apply|discard'.\n", a.Config().StateDir)
	}

	return runErr
}

func printStatus(out io.Writer, s *app.Session) {
	g := s.Graph()
	fmt.Fprintf(out, "Graph:   %s %s\n", g.ID, g.Name)
	fmt.Fprintf(out, "Status:  %s\n", s.Status())
	heads := []string{}
	for _, n := range g.Heads() {
		heads = append(heads, n.ID())
	}
	fmt.Fprintf(out, "Heads:   %v\n", heads)

	rows := [][]any{}
	for _, n := range g.Nodes() {
		errMsg := ""
		if err := n.Err(); err != nil {
			errMsg = err.Error()
		}
		rows = append(rows, []any{n.ID(), n.Type(), n.State(), errMsg})
	}
	fmt.Fprintln(out, dataio.RenderRows([]string{"Node", "Type", "State", "Error"}, rows, dataio.ASCII))

	if id := s.PausedAt(); id != "" {
		fmt.Fprintf(out, "Paused at %s:\n%s\n", id, dataio.RenderCandidates(s.Candidates(id), dataio.ASCII))
	}
}
