package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/graphfile"
	"github.com/askiada/go-pdq/pkg/graphstore"
	"github.com/askiada/go-pdq/pkg/pipeline"
)

const (
	GraphFile    = "graph.yaml"
	SnapshotFile = "snapshot.yaml"
)

// ErrNoState is returned by Restore when the state directory holds no run.
var ErrNoState = errors.New("no saved run")

func (a *App) stateDir() (string, error) {
	if a.config.StateDir == "" {
		return "", errors.Wrap(ErrConfig, "state directory is required")
	}

	return a.config.StateDir, nil
}

// Save writes the graph and the run snapshot to the state directory, then
// saves the graph in the store.
func (s *Session) Save(ctx context.Context) error {
	dir, err := s.app.stateDir()
	if err != nil {
		return err
	}
	err = os.MkdirAll(dir, 0o750)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", dir)
	}

	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	err = graphfile.Save(filepath.Join(dir, GraphFile), s.Graph())
	if err != nil {
		return err
	}
	err = writeFile(filepath.Join(dir, SnapshotFile), data)
	if err != nil {
		return err
	}
	err = graphstore.SaveGraph(ctx, s.app.store, s.Graph())
	if err != nil {
		return err
	}
	s.app.logger.InfoContext(ctx, "run saved", "dir", dir, "status", snap.Status, "paused_at", snap.PausedAt)

	return nil
}

// Restore rebuilds the session saved in the state directory.
func (a *App) Restore(ctx context.Context) (*Session, error) {
	dir, err := a.stateDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNoState, "in %s", dir)
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read snapshot")
	}
	snap, err := pipeline.UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	g, err := graphfile.Load(filepath.Join(dir, GraphFile), a.registry, graphfile.LoadSilent)
	if err != nil {
		return nil, err
	}
	s, err := a.session(g, func(opts ...pipeline.RunnerOption) (*pipeline.Runner, error) {
		return pipeline.RestoreRunner(g, snap, opts...)
	})
	if err != nil {
		return nil, err
	}
	a.logger.DebugContext(ctx, "run restored", "graph", g.ID, "status", snap.Status)

	return s, nil
}

// Clear removes the saved run from the state directory.
func (a *App) Clear() error {
	dir, err := a.stateDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, SnapshotFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "unable to remove snapshot")
	}

	return nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	err := os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", tmp)
	}
	err = os.Rename(tmp, path)
	if err != nil {
		return errors.Wrapf(err, "unable to rename %s", tmp)
	}

	return nil
}
