package graphfile_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pdq/internal/ctxlog"
	"github.com/askiada/go-pdq/pkg/graphfile"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
	"github.com/askiada/go-pdq/pkg/stages"
)

const document = `
id: remediation
name: Purchase log clean-up
creator: ana
created: 2024-03-01T10:00:00Z
nodes:
  - id: read
    type: csv-reader
    options:
      Path: events.csv
      Infer Types: true
    state: COMPLETED
  - id: detect
    type: levenshtein
    options:
      Column: activity
      Threshold: 1
      Resolutions:
        creat PO: create PO
    state: RUNNING
  - id: write
    type: csv-writer
    options:
      Path: clean.csv
edges:
  - source: read
    target: detect
  - source: detect
    target: write
`

type recorder struct {
	model.BaseObserver

	changes []model.NodeInfo
}

func (r *recorder) OnNodeStateChange(node model.NodeInfo, _ model.State) error {
	r.changes = append(r.changes, node)

	return nil
}

func registry(t *testing.T) *pipeline.Registry {
	t.Helper()

	reg := pipeline.NewRegistry()
	require.NoError(t, stages.Register(reg, nil))

	return reg
}

func nodeState(t *testing.T, g *pipeline.Graph, id string) model.State {
	t.Helper()

	n, err := g.Node(id)
	require.NoError(t, err)

	return n.State()
}

func TestDecode(t *testing.T) {
	t.Parallel()

	g, err := graphfile.Decode([]byte(document), registry(t), graphfile.LoadSilent)
	require.NoError(t, err)

	assert.Equal(t, "remediation", g.ID)
	assert.Equal(t, "Purchase log clean-up", g.Name)
	assert.Equal(t, "ana", g.Creator)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), g.Created.UTC())
	assert.Equal(t, []pipeline.Edge{{Source: "read", Target: "detect"}, {Source: "detect", Target: "write"}}, g.Edges())
	assert.Equal(t, []string{"read"}, []string{g.Heads()[0].ID()})

	assert.Equal(t, model.Completed, nodeState(t, g, "read"))
	assert.Equal(t, model.Unstarted, nodeState(t, g, "detect"))

	detect, err := g.Node("detect")
	require.NoError(t, err)
	assert.Equal(t, 1, detect.Stage().Options().Int(stages.OptThreshold))
	assert.Equal(t, map[string]string{"creat PO": "create PO"}, detect.Stage().Options().StringMap(stages.OptResolutions))
}

func TestDecodeLoadModes(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mode graphfile.LoadMode
		want []string
	}{
		"silent": {mode: graphfile.LoadSilent, want: []string{}},
		"notify": {mode: graphfile.LoadNotify, want: []string{"read"}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			_, err := graphfile.Decode([]byte(document), registry(t), tc.mode, rec)
			require.NoError(t, err)

			got := []string{}
			for _, info := range rec.changes {
				got = append(got, info.ID)
				assert.Equal(t, model.Completed, info.State)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		doc  string
		want error
	}{
		"unknown type": {
			doc:  "id: g\nnodes:\n  - id: a\n    type: teleporter\n",
			want: pipeline.ErrUnknownStageType,
		},
		"missing option": {
			doc:  "id: g\nnodes:\n  - id: a\n    type: csv-reader\n",
			want: pipeline.ErrConfig,
		},
		"untyped": {
			doc:  "id: g\nnodes:\n  - id: a\n",
			want: graphfile.ErrUntypedNode,
		},
		"dangling edge": {
			doc:  "id: g\nnodes:\n  - id: a\n    type: csv-reader\n    options: {Path: x}\nedges:\n  - {source: a, target: b}\n",
			want: pipeline.ErrUnknownNode,
		},
		"bad state": {
			doc:  "id: g\nnodes:\n  - id: a\n    type: csv-reader\n    options: {Path: x}\n    state: SLEEPING\n",
			want: model.ErrUnknownValue,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := graphfile.Decode([]byte(tc.doc), registry(t), graphfile.LoadSilent)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	reg := registry(t)
	g, err := graphfile.Decode([]byte(document), reg, graphfile.LoadSilent)
	require.NoError(t, err)
	g.Description = "weekly"

	write, err := g.Node("write")
	require.NoError(t, err)
	write.RestoreState(model.Failed, assert.AnError)

	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, graphfile.Save(path, g))

	loaded, err := graphfile.Load(path, reg, graphfile.LoadSilent)
	require.NoError(t, err)
	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, "weekly", loaded.Description)
	assert.Equal(t, g.Edges(), loaded.Edges())
	assert.Equal(t, model.Completed, nodeState(t, loaded, "read"))
	assert.Equal(t, model.Failed, nodeState(t, loaded, "write"))

	loadedWrite, err := loaded.Node("write")
	require.NoError(t, err)
	require.ErrorIs(t, loadedWrite.Err(), pipeline.ErrStageExecution)
	assert.Contains(t, loadedWrite.Err().Error(), assert.AnError.Error())

	read, err := loaded.Node("read")
	require.NoError(t, err)
	assert.True(t, read.Stage().Options().Bool(stages.OptInferTypes))
}

func TestPausedNodeLoadedUnstarted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csv := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(csv, []byte("activity\ncreate PO\ncreat PO\n"), 0o600))
	doc := fmt.Sprintf(`
id: paused
nodes:
  - id: read
    type: csv-reader
    options: {Path: %q}
  - id: detect
    type: levenshtein
    options: {Column: activity}
    state: PAUSED
  - id: write
    type: csv-writer
    options: {Path: %q}
edges:
  - {source: read, target: detect}
  - {source: detect, target: write}
`, csv, filepath.Join(dir, "clean.csv"))

	rec := &recorder{}
	g, err := graphfile.Decode([]byte(doc), registry(t), graphfile.LoadNotify, rec)
	require.NoError(t, err)
	assert.Equal(t, model.Unstarted, nodeState(t, g, "detect"))
	assert.Empty(t, rec.changes)

	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))
	require.Equal(t, "detect", runner.PausedAt())
	require.Len(t, runner.Candidates("detect"), 1)
	require.NoError(t, runner.Resume(t.Context(), "detect", pipeline.Discard()))
	assert.Equal(t, model.RunCompleted, runner.Status())
}
