package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-pdq/internal/ctxlog"
	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

type pending struct {
	input      *dataset.Dataset
	candidates []detect.Candidate
}

// Runner walks a graph in dependency order.
//
// A pattern detector that reports candidates pauses the whole run: no other
// node is dispatched until Resume is called for that node. Nodes already
// running when the pause happens finish normally.
type Runner struct {
	graph      *Graph
	logger     *slog.Logger
	observers  []model.Observer
	concurrent int

	// execMu serialises Run, Resume and Reset.
	execMu   sync.Mutex
	notifyMu sync.Mutex

	mu       sync.RWMutex
	status   model.RunStatus
	start    time.Time
	pausedAt string
	outputs  map[string]*dataset.Dataset
	pending  map[string]*pending
}

// NewRunner creates a runner for g. By default nodes are dispatched one at a time.
func NewRunner(g *Graph, opts ...RunnerOption) *Runner {
	r := &Runner{
		graph:      g,
		concurrent: 1,
		outputs:    make(map[string]*dataset.Dataset),
		pending:    make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Graph returns the graph walked by the runner.
func (r *Runner) Graph() *Graph {
	return r.graph
}

func (r *Runner) Status() model.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// PausedAt returns the id of the node the run is paused at, or "".
func (r *Runner) PausedAt() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.pausedAt
}

// Candidates returns the unresolved candidates of a paused node.
func (r *Runner) Candidates(id string) []detect.Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pending[id]
	if !ok {
		return nil
	}

	return slices.Clone(p.candidates)
}

// Output returns a copy of the dataset produced by a completed node, or nil.
func (r *Runner) Output(id string) *dataset.Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out, ok := r.outputs[id]
	if !ok || out == nil {
		return nil
	}

	return out.Clone()
}

// Run walks the graph until every reachable node completed, a node paused,
// or ctx is cancelled. Cancellation is checked between dispatches.
//
// A paused run returns nil; check Status and call Resume. When nodes failed,
// the returned error wraps the first *StageError.
func (r *Runner) Run(ctx context.Context) error {
	if !r.execMu.TryLock() {
		return ErrRunInProgress
	}
	defer r.execMu.Unlock()

	ctx = r.withLogger(ctx)
	if r.Status() == model.RunPaused {
		return errors.Wrapf(ErrRunPaused, "resume node %s first", r.PausedAt())
	}
	if _, err := r.graph.TopologicalOrder(); err != nil {
		return errors.Wrap(err, "unable to order graph")
	}

	r.mu.Lock()
	r.status = model.RunRunning
	r.start = time.Now()
	r.pausedAt = ""
	r.mu.Unlock()

	info := r.runInfo()
	r.notify(ctx, "run start", func(obs model.Observer) error { return obs.OnRunStart(info) })

	return r.walk(ctx)
}

// Resume answers the candidates of the paused node id, then continues the walk.
// It fails with ErrInvalidResume, without side effects, if the node is unknown,
// not paused, or the decision names values that no candidate mentions.
func (r *Runner) Resume(ctx context.Context, id string, decision Decision) error {
	if !r.execMu.TryLock() {
		return ErrRunInProgress
	}
	defer r.execMu.Unlock()

	ctx = r.withLogger(ctx)
	n, err := r.graph.Node(id)
	if err != nil {
		return errors.Wrapf(ErrInvalidResume, "unknown node %s", id)
	}
	if n.State() != model.Paused {
		return errors.Wrapf(ErrInvalidResume, "node %s is %s", id, n.State())
	}
	r.mu.RLock()
	p := r.pending[id]
	r.mu.RUnlock()
	if p == nil {
		return errors.Wrapf(ErrInvalidResume, "node %s has no pending candidates", id)
	}
	err = validateDecision(p, decision)
	if err != nil {
		return errors.Wrapf(err, "node %s", id)
	}

	r.mu.Lock()
	r.status = model.RunRunning
	r.pausedAt = ""
	r.mu.Unlock()

	info := r.runInfo()
	r.notify(ctx, "run start", func(obs model.Observer) error { return obs.OnRunStart(info) })

	if err := r.transition(ctx, n, model.Running); err != nil {
		return err
	}
	out, err := r.resolve(ctx, n, p, decision)

	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()

	if err != nil {
		r.failNode(ctx, n, err)
	} else {
		r.setOutput(id, out)
		if err := r.transition(ctx, n, model.Completed); err != nil {
			return err
		}
	}

	return r.walk(ctx)
}

// Drive runs the graph and asks decider for a decision every time the run pauses.
func (r *Runner) Drive(ctx context.Context, decider Decider) error {
	var err error
	if r.Status() != model.RunPaused {
		err = r.Run(ctx)
	}
	for err == nil && r.Status() == model.RunPaused {
		id := r.PausedAt()
		n, nerr := r.graph.Node(id)
		if nerr != nil {
			return nerr
		}
		decision, derr := decider.Decide(ctx, n.Info(), r.Candidates(id))
		if derr != nil {
			return errors.Wrapf(derr, "unable to decide on node %s", id)
		}
		err = r.Resume(ctx, id, decision)
	}

	return err
}

// Reset moves node id and all its descendants back to UNSTARTED and drops their outputs.
func (r *Runner) Reset(ctx context.Context, id string) error {
	if !r.execMu.TryLock() {
		return ErrRunInProgress
	}
	defer r.execMu.Unlock()

	return r.reset(r.withLogger(ctx), id)
}

// Reconfigure applies values to the options of node id, then resets it.
// The options are left unchanged on ErrConfig.
func (r *Runner) Reconfigure(ctx context.Context, id string, values map[string]any) error {
	if !r.execMu.TryLock() {
		return ErrRunInProgress
	}
	defer r.execMu.Unlock()

	n, err := r.graph.Node(id)
	if err != nil {
		return err
	}
	err = n.Stage().Options().Apply(values)
	if err != nil {
		return errors.Wrapf(err, "unable to reconfigure node %s", id)
	}

	return r.reset(r.withLogger(ctx), id)
}

func (r *Runner) reset(ctx context.Context, id string) error {
	n, err := r.graph.Node(id)
	if err != nil {
		return err
	}
	desc, err := r.graph.Descendants(id)
	if err != nil {
		return err
	}

	for _, node := range append([]*Node{n}, desc...) {
		prev := node.reset()

		r.mu.Lock()
		delete(r.outputs, node.ID())
		delete(r.pending, node.ID())
		if r.pausedAt == node.ID() {
			r.pausedAt = ""
			r.status = model.RunIdle
		}
		r.mu.Unlock()

		if prev != model.Unstarted {
			info := node.Info()
			r.notify(ctx, "node state change", func(obs model.Observer) error { return obs.OnNodeStateChange(info, prev) })
		}
	}

	r.mu.Lock()
	switch r.status {
	case model.RunCompleted, model.RunFailed, model.RunAborted:
		r.status = model.RunIdle
	default:
	}
	r.mu.Unlock()

	ctxlog.FromContext(ctx).DebugContext(ctx, "node reset", "node", id, "descendants", len(desc))

	return nil
}

func (r *Runner) walk(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, err)
		}

		order, err := r.graph.topologicalIDs()
		if err != nil {
			return r.abort(ctx, err)
		}
		nodes := make([]*Node, 0, len(order))
		for _, id := range order {
			n, err := r.graph.Node(id)
			if err != nil {
				return r.abort(ctx, err)
			}
			nodes = append(nodes, n)
		}

		if paused := firstInState(nodes, model.Paused); paused != nil {
			return r.pause(ctx, paused)
		}
		if r.failedLoneHead() {
			logger.WarnContext(ctx, "head node failed before any other head completed, stopping")

			break
		}

		ready := r.ready(nodes)
		if len(ready) == 0 {
			break
		}
		r.dispatchBatch(ctx, ready[:min(r.concurrent, len(ready))])
	}

	return r.finish(ctx)
}

func firstInState(nodes []*Node, state model.State) *Node {
	for _, n := range nodes {
		if n.State() == state {
			return n
		}
	}

	return nil
}

// ready returns the unstarted nodes whose predecessors all completed.
func (r *Runner) ready(nodes []*Node) []*Node {
	res := []*Node{}
	for _, n := range nodes {
		if n.State() != model.Unstarted {
			continue
		}
		ok := true
		for _, pred := range r.graph.Predecessors(n.ID()) {
			if pred.State() != model.Completed {
				ok = false

				break
			}
		}
		if ok {
			res = append(res, n)
		}
	}

	return res
}

// failedLoneHead reports whether a head failed while no other head completed.
func (r *Runner) failedLoneHead() bool {
	heads := r.graph.Heads()
	failed, completed := false, false
	for _, h := range heads {
		switch h.State() {
		case model.Failed:
			failed = true
		case model.Completed:
			completed = true
		default:
		}
	}

	return failed && !completed
}

// dispatchBatch moves every node of the batch to RUNNING before any of them
// runs, so a pause raised inside the batch only meets nodes already running.
func (r *Runner) dispatchBatch(ctx context.Context, batch []*Node) {
	started := make([]*Node, 0, len(batch))
	for _, n := range batch {
		if err := r.transition(ctx, n, model.Running); err != nil {
			ctxlog.FromContext(ctx).ErrorContext(ctx, "unable to start node", "node", n.ID(), "error", err)

			continue
		}
		started = append(started, n)
	}
	if len(started) == 1 {
		r.dispatch(ctx, started[0])

		return
	}

	var group errgroup.Group
	group.SetLimit(r.concurrent)
	for _, n := range started {
		group.Go(func() error {
			r.dispatch(ctx, n)

			return nil
		})
	}
	_ = group.Wait()
}

// dispatch runs a node already moved to RUNNING.
func (r *Runner) dispatch(ctx context.Context, n *Node) {
	logger := ctxlog.FromContext(ctx).With("node", n.ID(), "kind", n.Kind().String())

	input, err := r.inputOf(n)
	if err != nil {
		r.failNode(ctx, n, err)

		return
	}

	logger.DebugContext(ctx, "dispatching node")
	start := time.Now()
	// a running node finishes even when the run is cancelled
	res, err := n.Stage().Run(context.WithoutCancel(ctx), input)
	if err != nil {
		r.failNode(ctx, n, err)

		return
	}
	if res == nil {
		res = &Result{}
	}

	out := res.Output
	switch n.Kind() {
	case model.Reader, model.Action:
		if out == nil {
			r.failNode(ctx, n, errors.Errorf("%s returned no dataset", n.Kind()))

			return
		}
		if err := out.Validate(); err != nil {
			r.failNode(ctx, n, err)

			return
		}
	case model.PatternDetector:
		if len(res.Candidates) > 0 {
			r.mu.Lock()
			r.pending[n.ID()] = &pending{input: input, candidates: slices.Clone(res.Candidates)}
			r.mu.Unlock()
			logger.InfoContext(ctx, "candidates found, pausing", "candidates", len(res.Candidates))
			_ = r.transition(ctx, n, model.Paused)

			return
		}
		if out == nil {
			out = input
		}
	case model.Writer:
		out = nil
	}

	r.setOutput(n.ID(), out)
	logger.DebugContext(ctx, "node completed", "duration", time.Since(start))
	_ = r.transition(ctx, n, model.Completed)
}

// inputOf returns a copy of the output of the single predecessor of n.
func (r *Runner) inputOf(n *Node) (*dataset.Dataset, error) {
	preds := r.graph.Predecessors(n.ID())
	if n.Kind() == model.Reader {
		return nil, nil
	}
	switch len(preds) {
	case 0:
		return nil, errors.Errorf("%s has no input", n.Kind())
	case 1:
	default:
		return nil, errors.Errorf("%s has %d inputs, expected 1", n.Kind(), len(preds))
	}

	r.mu.RLock()
	out := r.outputs[preds[0].ID()]
	r.mu.RUnlock()
	if out == nil {
		return nil, errors.Errorf("predecessor %s produced no dataset", preds[0].ID())
	}

	return out.Clone(), nil
}

func validateDecision(p *pending, decision Decision) error {
	switch decision.Kind {
	case DecisionApply:
		for original := range decision.Resolutions {
			known := slices.ContainsFunc(p.candidates, func(c detect.Candidate) bool { return c.Mentions(original) })
			if !known {
				return errors.Wrapf(ErrInvalidResume, "no candidate mentions %q", original)
			}
		}
	case DecisionDiscard:
	case DecisionEdit:
		if decision.Dataset == nil {
			return errors.Wrap(ErrInvalidResume, "edit decision needs a dataset")
		}
		if err := decision.Dataset.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidResume, "edited dataset: %v", err)
		}
	default:
		return errors.Wrapf(ErrInvalidResume, "unknown decision %d", int(decision.Kind))
	}

	return nil
}

func (r *Runner) resolve(ctx context.Context, n *Node, p *pending, decision Decision) (*dataset.Dataset, error) {
	logger := ctxlog.FromContext(ctx).With("node", n.ID())
	switch decision.Kind {
	case DecisionDiscard:
		logger.InfoContext(ctx, "candidates discarded", "candidates", len(p.candidates))

		return p.input, nil
	case DecisionEdit:
		logger.InfoContext(ctx, "output replaced by manual edit", "rows", decision.Dataset.RowCount())

		return decision.Dataset.Clone(), nil
	default:
		resolver, ok := n.Stage().(Resolver)
		if !ok {
			return nil, errors.Wrap(ErrInvalidStage, "stage cannot resolve candidates")
		}
		logger.InfoContext(ctx, "applying resolutions", "resolutions", len(decision.Resolutions))
		out, err := resolver.Resolve(context.WithoutCancel(ctx), p.input, p.candidates, decision.Resolutions)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.New("resolver returned no dataset")
		}

		return out, nil
	}
}

func (r *Runner) setOutput(id string, out *dataset.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outputs[id] = out
}

func (r *Runner) pause(ctx context.Context, n *Node) error {
	r.mu.Lock()
	r.status = model.RunPaused
	r.pausedAt = n.ID()
	count := 0
	if p, ok := r.pending[n.ID()]; ok {
		count = len(p.candidates)
	}
	r.mu.Unlock()

	ctxlog.FromContext(ctx).InfoContext(ctx, "run paused", "node", n.ID(), "candidates", count)
	info, nodeInfo := r.runInfo(), n.Info()
	r.notify(ctx, "run pause", func(obs model.Observer) error { return obs.OnRunPause(info, nodeInfo, count) })

	return nil
}

func (r *Runner) abort(ctx context.Context, cause error) error {
	r.mu.Lock()
	r.status = model.RunAborted
	r.mu.Unlock()

	ctxlog.FromContext(ctx).WarnContext(ctx, "run aborted", "error", cause)
	info := r.runInfo()
	r.notify(ctx, "run fail", func(obs model.Observer) error { return obs.OnRunFail(info, cause) })

	return errors.Wrap(cause, "run aborted")
}

func (r *Runner) finish(ctx context.Context) error {
	var firstErr error
	for _, n := range r.graph.Nodes() {
		if n.State() == model.Failed && firstErr == nil {
			firstErr = n.Err()
		}
	}

	if firstErr != nil {
		r.mu.Lock()
		r.status = model.RunFailed
		r.mu.Unlock()

		info := r.runInfo()
		r.notify(ctx, "run fail", func(obs model.Observer) error { return obs.OnRunFail(info, firstErr) })

		return errors.Wrap(firstErr, "run failed")
	}

	r.mu.Lock()
	r.status = model.RunCompleted
	r.mu.Unlock()

	info := r.runInfo()
	ctxlog.FromContext(ctx).InfoContext(ctx, "run completed", "duration", time.Since(info.Start))
	r.notify(ctx, "run complete", func(obs model.Observer) error { return obs.OnRunComplete(info) })

	return nil
}

func (r *Runner) failNode(ctx context.Context, n *Node, cause error) {
	err := &StageError{NodeID: n.ID(), Err: cause}
	ctxlog.FromContext(ctx).ErrorContext(ctx, "node failed", "node", n.ID(), "error", cause)
	_ = r.transitionWith(ctx, n, model.Failed, err)
}

func (r *Runner) transition(ctx context.Context, n *Node, next model.State) error {
	return r.transitionWith(ctx, n, next, nil)
}

func (r *Runner) transitionWith(ctx context.Context, n *Node, next model.State, cause error) error {
	prev, err := n.transition(next, cause)
	if err != nil {
		return err
	}
	info := n.Info()
	r.notify(ctx, "node state change", func(obs model.Observer) error { return obs.OnNodeStateChange(info, prev) })

	return nil
}

func (r *Runner) runInfo() model.RunInfo {
	r.mu.RLock()
	info := model.RunInfo{
		GraphID:  r.graph.ID,
		Status:   r.status,
		Start:    r.start,
		PausedAt: r.pausedAt,
	}
	r.mu.RUnlock()

	for _, n := range r.graph.Nodes() {
		if n.State() == model.Failed {
			info.Failed = append(info.Failed, n.ID())
		}
	}

	return info
}

// notify calls every observer in registration order. Observer errors are logged, never propagated.
func (r *Runner) notify(ctx context.Context, hook string, fn func(obs model.Observer) error) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	for _, obs := range r.observers {
		if err := fn(obs); err != nil {
			ctxlog.FromContext(ctx).WarnContext(ctx, "observer failed", "hook", hook, "error", err)
		}
	}
}

func (r *Runner) withLogger(ctx context.Context) context.Context {
	if r.logger == nil {
		return ctx
	}

	return ctxlog.WithLogger(ctx, r.logger)
}
