package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pdq/internal/ctxlog"
	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

func assertStates(t *testing.T, g *pipeline.Graph, want map[string]model.State) {
	t.Helper()

	for id, state := range want {
		n, err := g.Node(id)
		require.NoError(t, err)
		assert.Equal(t, state, n.State(), "node %s", id)
	}
}

// linear builds read -> detect -> write over values.
func linear(t *testing.T, threshold int, values ...string) (*pipeline.Graph, *testWriter) {
	t.Helper()

	w := newWriter()
	g := buildGraph(t, map[string]pipeline.Stage{
		"read":   newReader(activities(t, values...)),
		"detect": newDetector("activity", threshold),
		"write":  w,
	}, []string{"read", "detect", "write"},
		[2]string{"read", "detect"}, [2]string{"detect", "write"})

	return g, w
}

func TestRunWithoutCandidates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	g, w := linear(t, 2, "create PO", "ship item", "pay invoice")
	runner := pipeline.NewRunner(g, pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))

	require.NoError(t, runner.Run(t.Context()))
	assert.Equal(t, model.RunCompleted, runner.Status())
	assertStates(t, g, map[string]model.State{
		"read":   model.Completed,
		"detect": model.Completed,
		"write":  model.Completed,
	})
	assert.True(t, activities(t, "create PO", "ship item", "pay invoice").Equal(w.Got()))
	assert.Empty(t, rec.pauses)
	assert.Equal(t, 1, rec.done)
	for _, e := range rec.events {
		assert.NotEqual(t, model.Paused, e.to)
	}
}

func TestRunPausesWholeGraph(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	aw, bw := newWriter(), newWriter()
	bRead := newReader(activities(t, "x"))
	g := buildGraph(t, map[string]pipeline.Stage{
		"a-read":   newReader(activities(t, "create PO", "creat PO", "ship item")),
		"a-detect": newDetector("activity", 2),
		"a-write":  aw,
		"b-read":   bRead,
		"b-act":    passThrough(),
		"b-write":  bw,
	}, []string{"b-read", "b-act", "b-write", "a-read", "a-detect", "a-write"},
		[2]string{"a-read", "a-detect"}, [2]string{"a-detect", "a-write"},
		[2]string{"b-read", "b-act"}, [2]string{"b-act", "b-write"})

	runner := pipeline.NewRunner(g, pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))

	assert.Equal(t, model.RunPaused, runner.Status())
	assert.Equal(t, "a-detect", runner.PausedAt())
	assert.Equal(t, []string{"a-detect"}, rec.pauses)
	assert.Equal(t, []string{"a-read", "a-detect"}, rec.started())
	assertStates(t, g, map[string]model.State{
		"a-read":   model.Completed,
		"a-detect": model.Paused,
		"a-write":  model.Unstarted,
		"b-read":   model.Unstarted,
		"b-act":    model.Unstarted,
		"b-write":  model.Unstarted,
	})
	assert.Zero(t, bRead.calls.Load())
	require.Len(t, runner.Candidates("a-detect"), 1)

	require.NoError(t, runner.Resume(t.Context(), "a-detect", pipeline.Discard()))
	assert.Equal(t, model.RunCompleted, runner.Status())
	assert.Empty(t, runner.PausedAt())
	assert.Nil(t, runner.Candidates("a-detect"))
	assert.Equal(t, []string{"a-read", "a-detect", "a-detect", "a-write", "b-read", "b-act", "b-write"}, rec.started())
	assert.NotNil(t, bw.Got())
	assert.True(t, activities(t, "create PO", "creat PO", "ship item").Equal(aw.Got()))
}

func TestResumeDecisions(t *testing.T) {
	t.Parallel()

	values := []string{"create PO", "creat PO", "ship item", "creat PO"}
	tcs := map[string]struct {
		decision pipeline.Decision
		want     []string
	}{
		"discard": {
			decision: pipeline.Discard(),
			want:     values,
		},
		"apply": {
			decision: pipeline.Apply(map[string]string{"creat PO": "create PO"}),
			want:     []string{"create PO", "create PO", "ship item", "create PO"},
		},
		"apply reverse": {
			decision: pipeline.Apply(map[string]string{"create PO": "creat PO"}),
			want:     []string{"creat PO", "creat PO", "ship item", "creat PO"},
		},
		"apply nothing": {
			decision: pipeline.Apply(nil),
			want:     values,
		},
		"edit": {
			decision: pipeline.Edit(activities(t, "a", "b", "c", "d")),
			want:     []string{"a", "b", "c", "d"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g, w := linear(t, 2, values...)
			runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
			require.NoError(t, runner.Run(t.Context()))
			require.Equal(t, "detect", runner.PausedAt())
			assert.Equal(t, []detect.Candidate{{
				Column:   "activity",
				Original: "create PO",
				Match:    "creat PO",
				Score:    1,
				Rows:     []int{0, 1, 3},

				OriginalCount: 1,
				MatchCount:    2,
			}}, runner.Candidates("detect"))

			require.NoError(t, runner.Resume(t.Context(), "detect", tc.decision))
			assert.Equal(t, model.RunCompleted, runner.Status())
			assert.True(t, activities(t, tc.want...).Equal(w.Got()), "got %v", w.Got())
			assert.True(t, activities(t, tc.want...).Equal(runner.Output("detect")))
		})
	}
}

func TestResumeInvalid(t *testing.T) {
	t.Parallel()

	misaligned := &dataset.Dataset{Columns: []*dataset.Column{
		dataset.NewStringColumn("case", "1"),
		dataset.NewStringColumn("activity"),
	}}
	tcs := map[string]struct {
		node     string
		decision pipeline.Decision
	}{
		"completed node":  {node: "read", decision: pipeline.Discard()},
		"unstarted node":  {node: "write", decision: pipeline.Discard()},
		"unknown node":    {node: "missing", decision: pipeline.Discard()},
		"unknown value":   {node: "detect", decision: pipeline.Apply(map[string]string{"ship item": "ship"})},
		"nil edit":        {node: "detect", decision: pipeline.Edit(nil)},
		"misaligned edit": {node: "detect", decision: pipeline.Edit(misaligned)},
		"unknown kind":    {node: "detect", decision: pipeline.Decision{Kind: 42}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			g, w := linear(t, 2, "create PO", "creat PO", "ship item")
			runner := pipeline.NewRunner(g, pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))
			require.NoError(t, runner.Run(t.Context()))
			events := len(rec.events)

			err := runner.Resume(t.Context(), tc.node, tc.decision)
			require.ErrorIs(t, err, pipeline.ErrInvalidResume)

			assert.Equal(t, model.RunPaused, runner.Status())
			assert.Equal(t, "detect", runner.PausedAt())
			assert.Len(t, runner.Candidates("detect"), 1)
			assert.Len(t, rec.events, events)
			assertStates(t, g, map[string]model.State{
				"read":   model.Completed,
				"detect": model.Paused,
				"write":  model.Unstarted,
			})
			assert.Nil(t, w.Got())
		})
	}
}

func TestRunWhilePaused(t *testing.T) {
	t.Parallel()

	g, _ := linear(t, 2, "create PO", "creat PO")
	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))

	require.ErrorIs(t, runner.Run(t.Context()), pipeline.ErrRunPaused)
}

func TestThresholdZeroNeverPauses(t *testing.T) {
	t.Parallel()

	g, _ := linear(t, 0, "create PO", "creat PO", "ship item")
	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))
	assert.Equal(t, model.RunCompleted, runner.Status())
}

func TestRunFailureIsolation(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	w1, w2 := newWriter(), newWriter()
	g := buildGraph(t, map[string]pipeline.Stage{
		"read": newReader(activities(t, "create PO")),
		"a1": newAction(func(*dataset.Dataset) (*dataset.Dataset, error) {
			return nil, assert.AnError
		}),
		"a2": passThrough(),
		"w1": w1,
		"w2": w2,
	}, []string{"read", "a1", "a2", "w1", "w2"},
		[2]string{"read", "a1"}, [2]string{"read", "a2"}, [2]string{"a1", "w1"}, [2]string{"a2", "w2"})

	runner := pipeline.NewRunner(g, pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))
	err := runner.Run(t.Context())
	require.ErrorIs(t, err, pipeline.ErrStageExecution)
	require.ErrorIs(t, err, assert.AnError)

	var serr *pipeline.StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "a1", serr.NodeID)

	assert.Equal(t, model.RunFailed, runner.Status())
	assertStates(t, g, map[string]model.State{
		"read": model.Completed,
		"a1":   model.Failed,
		"w1":   model.Unstarted,
		"a2":   model.Completed,
		"w2":   model.Completed,
	})
	assert.Nil(t, w1.Got())
	assert.NotNil(t, w2.Got())
	require.Len(t, rec.fails, 1)

	n, err := g.Node("a1")
	require.NoError(t, err)
	require.ErrorIs(t, n.Err(), assert.AnError)
}

func TestRunFailedHeadStops(t *testing.T) {
	t.Parallel()

	broken := newReader(nil)
	broken.run = func(context.Context, *dataset.Dataset) (*pipeline.Result, error) {
		return nil, assert.AnError
	}
	other := newReader(activities(t, "ship item"))
	g := buildGraph(t, map[string]pipeline.Stage{
		"a-read": broken,
		"b-read": other,
	}, []string{"b-read", "a-read"})

	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	err := runner.Run(t.Context())
	require.ErrorIs(t, err, pipeline.ErrStageExecution)
	assertStates(t, g, map[string]model.State{
		"a-read": model.Failed,
		"b-read": model.Unstarted,
	})
	assert.Zero(t, other.calls.Load())
}

func TestReaderWithoutDatasetFails(t *testing.T) {
	t.Parallel()

	empty := newReader(nil)
	empty.run = func(context.Context, *dataset.Dataset) (*pipeline.Result, error) {
		return nil, nil
	}
	g := buildGraph(t, map[string]pipeline.Stage{"read": empty}, []string{"read"})

	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.ErrorIs(t, runner.Run(t.Context()), pipeline.ErrStageExecution)
}

func TestRunCancelledBetweenDispatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	rec := &recorder{}
	w := newWriter()
	g := buildGraph(t, map[string]pipeline.Stage{
		"read": newReader(activities(t, "create PO")),
		"act": newAction(func(input *dataset.Dataset) (*dataset.Dataset, error) {
			cancel()

			return input, nil
		}),
		"write": w,
	}, []string{"read", "act", "write"},
		[2]string{"read", "act"}, [2]string{"act", "write"})

	runner := pipeline.NewRunner(g, pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))
	err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, model.RunAborted, runner.Status())
	assertStates(t, g, map[string]model.State{
		"read":  model.Completed,
		"act":   model.Completed,
		"write": model.Unstarted,
	})
	assert.Nil(t, w.Got())
	require.Len(t, rec.fails, 1)
}

func TestRunConcurrentHeads(t *testing.T) {
	t.Parallel()

	const heads = 4

	var started sync.WaitGroup
	started.Add(heads)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()

	nodes := map[string]pipeline.Stage{}
	order := []string{}
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		out := activities(t, id)
		r := newReader(out)
		r.run = func(context.Context, *dataset.Dataset) (*pipeline.Result, error) {
			started.Done()
			select {
			case <-all:
			case <-time.After(5 * time.Second):
				return nil, assert.AnError
			}

			return &pipeline.Result{Output: out.Clone()}, nil
		}
		nodes[id] = r
		order = append(order, id)
	}
	g := buildGraph(t, nodes, order)

	runner := pipeline.NewRunner(g, pipeline.WithConcurrency(heads), pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))
	for _, id := range order {
		assert.True(t, activities(t, id).Equal(runner.Output(id)))
	}
}

func TestRunBatchStartsBeforeStages(t *testing.T) {
	t.Parallel()

	var (
		g       *pipeline.Graph
		mu      sync.Mutex
		sibling = map[string]model.State{}
	)
	pair := map[string]string{"r1": "r2", "r2": "r1"}
	nodes := map[string]pipeline.Stage{}
	for id, other := range pair {
		out := activities(t, id)
		r := newReader(out)
		r.run = func(context.Context, *dataset.Dataset) (*pipeline.Result, error) {
			n, err := g.Node(other)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			sibling[id] = n.State()
			mu.Unlock()

			return &pipeline.Result{Output: out.Clone()}, nil
		}
		nodes[id] = r
	}
	g = buildGraph(t, nodes, []string{"r1", "r2"})

	rec := &recorder{}
	runner := pipeline.NewRunner(g, pipeline.WithConcurrency(2), pipeline.WithObserver(rec), pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))

	require.Len(t, sibling, 2)
	for id, state := range sibling {
		assert.Contains(t, []model.State{model.Running, model.Completed}, state, "sibling of %s", id)
	}
	require.GreaterOrEqual(t, len(rec.events), 2)
	for _, e := range rec.events[:2] {
		assert.Equal(t, model.Running, e.to, "node %s", e.node)
	}
}

func TestRunInProgress(t *testing.T) {
	t.Parallel()

	entered, release := make(chan struct{}), make(chan struct{})
	block := passThrough()
	block.run = func(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
		close(entered)
		<-release

		return &pipeline.Result{Output: input}, nil
	}
	g := buildGraph(t, map[string]pipeline.Stage{
		"read":  newReader(activities(t, "create PO")),
		"block": block,
	}, []string{"read", "block"}, [2]string{"read", "block"})

	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	done := make(chan error)
	go func() {
		done <- runner.Run(t.Context())
	}()

	<-entered
	require.ErrorIs(t, runner.Run(t.Context()), pipeline.ErrRunInProgress)
	require.ErrorIs(t, runner.Resume(t.Context(), "block", pipeline.Discard()), pipeline.ErrRunInProgress)
	require.ErrorIs(t, runner.Reset(t.Context(), "block"), pipeline.ErrRunInProgress)
	_, err := runner.Snapshot()
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, int32(1), block.calls.Load())
}

func TestReconfigure(t *testing.T) {
	t.Parallel()

	g, _ := linear(t, 0, "create PO", "creat PO")
	read, err := g.Node("read")
	require.NoError(t, err)
	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Run(t.Context()))
	require.Equal(t, model.RunCompleted, runner.Status())

	err = runner.Reconfigure(t.Context(), "detect", map[string]any{"Threshold": -1})
	require.ErrorIs(t, err, pipeline.ErrConfig)
	assert.Equal(t, model.RunCompleted, runner.Status())

	require.NoError(t, runner.Reconfigure(t.Context(), "detect", map[string]any{"Threshold": 2}))
	assert.Equal(t, model.RunIdle, runner.Status())
	assertStates(t, g, map[string]model.State{
		"read":   model.Completed,
		"detect": model.Unstarted,
		"write":  model.Unstarted,
	})
	assert.Nil(t, runner.Output("detect"))

	require.NoError(t, runner.Run(t.Context()))
	assert.Equal(t, "detect", runner.PausedAt())
	assert.Equal(t, int32(1), read.Stage().(*testStage).calls.Load())

	require.NoError(t, runner.Reset(t.Context(), "detect"))
	assert.Equal(t, model.RunIdle, runner.Status())
	assert.Empty(t, runner.PausedAt())
	assert.Nil(t, runner.Candidates("detect"))
}

func TestDrive(t *testing.T) {
	t.Parallel()

	g, w := linear(t, 2, "create PO", "creat PO", "ship item")
	var asked []model.NodeInfo
	decider := pipeline.DeciderFunc(func(_ context.Context, node model.NodeInfo, candidates []detect.Candidate) (pipeline.Decision, error) {
		asked = append(asked, node)

		return pipeline.ApplyAll(candidates)
	})

	runner := pipeline.NewRunner(g, pipeline.WithLogger(ctxlog.Discard()))
	require.NoError(t, runner.Drive(t.Context(), decider))
	require.Len(t, asked, 1)
	assert.Equal(t, "detect", asked[0].ID)
	assert.Equal(t, model.Paused, asked[0].State)
	assert.True(t, activities(t, "create PO", "create PO", "ship item").Equal(w.Got()))
}
