package pipeline_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

type testStage struct {
	kind       model.Kind
	maxInputs  int
	maxOutputs int
	opts       *option.Options
	calls      atomic.Int32
	run        func(ctx context.Context, input *dataset.Dataset) (*pipeline.Result, error)
}

func (s *testStage) Kind() model.Kind         { return s.kind }
func (s *testStage) Options() *option.Options { return s.opts }
func (s *testStage) MaxInputs() int           { return s.maxInputs }
func (s *testStage) MaxOutputs() int          { return s.maxOutputs }

func (s *testStage) Run(ctx context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
	s.calls.Add(1)

	return s.run(ctx, input)
}

func newReader(ds *dataset.Dataset) *testStage {
	return &testStage{
		kind:       model.Reader,
		maxOutputs: 4,
		opts:       option.New(),
		run: func(context.Context, *dataset.Dataset) (*pipeline.Result, error) {
			return &pipeline.Result{Output: ds.Clone()}, nil
		},
	}
}

func newAction(fn func(input *dataset.Dataset) (*dataset.Dataset, error)) *testStage {
	return &testStage{
		kind:       model.Action,
		maxInputs:  1,
		maxOutputs: 4,
		opts:       option.New(),
		run: func(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
			out, err := fn(input)
			if err != nil {
				return nil, err
			}

			return &pipeline.Result{Output: out}, nil
		},
	}
}

func passThrough() *testStage {
	return newAction(func(input *dataset.Dataset) (*dataset.Dataset, error) { return input, nil })
}

type testWriter struct {
	*testStage

	mu  sync.Mutex
	got *dataset.Dataset
}

func newWriter() *testWriter {
	w := &testWriter{}
	w.testStage = &testStage{
		kind:      model.Writer,
		maxInputs: 1,
		opts:      option.New(),
		run: func(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.got = input

			return nil, nil
		},
	}

	return w
}

func (w *testWriter) Got() *dataset.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.got
}

type testDetector struct {
	*testStage
}

func newDetector(column string, threshold int) *testDetector {
	d := &testDetector{}
	d.testStage = &testStage{
		kind:       model.PatternDetector,
		maxInputs:  1,
		maxOutputs: 4,
		opts:       option.New().AddString("Column", column).AddInt("Threshold", threshold, option.Min(0)),
		run: func(_ context.Context, input *dataset.Dataset) (*pipeline.Result, error) {
			col, err := input.Column(d.opts.String("Column"))
			if err != nil {
				return nil, err
			}
			alg := detect.Levenshtein{Threshold: d.opts.Int("Threshold")}

			return &pipeline.Result{Candidates: detect.Pairs(col.Name, col.Strings(), alg)}, nil
		},
	}

	return d
}

func (d *testDetector) Resolve(_ context.Context, input *dataset.Dataset, _ []detect.Candidate, resolutions map[string]string) (*dataset.Dataset, error) {
	_, err := input.ReplaceValues(d.opts.String("Column"), resolutions)
	if err != nil {
		return nil, err
	}

	return input, nil
}

func activities(t *testing.T, values ...string) *dataset.Dataset {
	t.Helper()

	ids := make([]any, len(values))
	for i := range values {
		ids[i] = i + 1
	}
	ds, err := dataset.New("events", dataset.NewColumn("case", ids...), dataset.NewStringColumn("activity", values...))
	require.NoError(t, err)

	return ds
}

func mustNode(t *testing.T, id string, stage pipeline.Stage) *pipeline.Node {
	t.Helper()

	n, err := pipeline.NewNode(id, "", stage)
	require.NoError(t, err)

	return n
}

// buildGraph adds the nodes in order, then connects each edge given as source, target pairs.
func buildGraph(t *testing.T, nodes map[string]pipeline.Stage, order []string, edges ...[2]string) *pipeline.Graph {
	t.Helper()

	g := pipeline.NewGraph(pipeline.GraphID("test"))
	for _, id := range order {
		require.NoError(t, g.AddNode(mustNode(t, id, nodes[id])))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}

	return g
}

func nodeIDs(nodes []*pipeline.Node) []string {
	res := make([]string, len(nodes))
	for i, n := range nodes {
		res[i] = n.ID()
	}

	return res
}

type event struct {
	node string
	from model.State
	to   model.State
}

type recorder struct {
	model.BaseObserver

	mu     sync.Mutex
	events []event
	pauses []string
	starts int
	done   int
	fails  []error
}

func (r *recorder) OnRunStart(model.RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++

	return nil
}

func (r *recorder) OnNodeStateChange(node model.NodeInfo, from model.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{node: node.ID, from: from, to: node.State})

	return nil
}

func (r *recorder) OnRunPause(_ model.RunInfo, node model.NodeInfo, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, node.ID)

	return nil
}

func (r *recorder) OnRunComplete(model.RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++

	return nil
}

func (r *recorder) OnRunFail(_ model.RunInfo, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails = append(r.fails, err)

	return nil
}

// started returns the nodes that moved to RUNNING, in order.
func (r *recorder) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := []string{}
	for _, e := range r.events {
		if e.to == model.Running {
			res = append(res, e.node)
		}
	}

	return res
}
