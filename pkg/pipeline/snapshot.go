package pipeline

import (
	"slices"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// NodeSnapshot is the persisted run-state of a node.
type NodeSnapshot struct {
	ID    string      `yaml:"id"`
	State model.State `yaml:"state"`
	Error string      `yaml:"error,omitempty"`
	// Output is the dataset produced by a completed node.
	Output *dataset.Dataset `yaml:"output,omitempty"`
	// Input and Candidates are set for a paused node.
	Input      *dataset.Dataset   `yaml:"input,omitempty"`
	Candidates []detect.Candidate `yaml:"candidates,omitempty"`
}

// Snapshot is the serialisable state of a run, so a paused run survives a restart.
type Snapshot struct {
	GraphID  string          `yaml:"graph_id"`
	Status   model.RunStatus `yaml:"status"`
	PausedAt string          `yaml:"paused_at,omitempty"`
	Start    time.Time       `yaml:"start"`
	Nodes    []NodeSnapshot  `yaml:"nodes"`
}

// Snapshot captures the run. It fails with ErrRunInProgress while the graph is walked.
func (r *Runner) Snapshot() (*Snapshot, error) {
	if !r.execMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.execMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		GraphID:  r.graph.ID,
		Status:   r.status,
		PausedAt: r.pausedAt,
		Start:    r.start,
	}
	for _, n := range r.graph.Nodes() {
		ns := NodeSnapshot{ID: n.ID(), State: n.State()}
		if err := n.Err(); err != nil {
			ns.Error = err.Error()
			var serr *StageError
			if errors.As(err, &serr) {
				ns.Error = serr.Err.Error()
			}
		}
		if out := r.outputs[n.ID()]; out != nil {
			ns.Output = out.Clone()
		}
		if p, ok := r.pending[n.ID()]; ok {
			ns.Input = p.input.Clone()
			ns.Candidates = slices.Clone(p.candidates)
		}
		snap.Nodes = append(snap.Nodes, ns)
	}

	return snap, nil
}

// Marshal encodes the snapshot as YAML.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal snapshot")
	}

	return data, nil
}

// UnmarshalSnapshot decodes a YAML snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	err := yaml.Unmarshal(data, snap)
	if err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal snapshot")
	}

	return snap, nil
}

// RestoreRunner creates a runner for g in the state captured by snap.
// Nodes that were running when the snapshot was taken are restored as UNSTARTED.
// Observers are not notified of restored states.
func RestoreRunner(g *Graph, snap *Snapshot, opts ...RunnerOption) (*Runner, error) {
	if snap == nil || snap.GraphID != g.ID {
		return nil, errors.Wrapf(ErrGraphMismatch, "graph %s", g.ID)
	}

	r := NewRunner(g, opts...)
	r.status = snap.Status
	r.start = snap.Start
	r.pausedAt = snap.PausedAt
	if r.status == model.RunRunning {
		r.status = model.RunIdle
	}

	type restored struct {
		node  *Node
		state model.State
		err   error
	}
	states := make([]restored, 0, len(snap.Nodes))
	for _, ns := range snap.Nodes {
		n, err := g.Node(ns.ID)
		if err != nil {
			return nil, errors.Wrap(err, "unable to restore snapshot")
		}
		state := ns.State
		var nodeErr error
		switch state {
		case model.Running:
			state = model.Unstarted
		case model.Failed:
			nodeErr = &StageError{NodeID: ns.ID, Err: errors.New(ns.Error)}
		case model.Paused:
			if ns.Input == nil || len(ns.Candidates) == 0 {
				return nil, errors.Wrapf(ErrGraphMismatch, "paused node %s has no pending candidates", ns.ID)
			}
			r.pending[ns.ID] = &pending{input: ns.Input, candidates: ns.Candidates}
		case model.Completed:
			r.outputs[ns.ID] = ns.Output
		default:
		}
		states = append(states, restored{node: n, state: state, err: nodeErr})
	}
	if r.pausedAt != "" {
		if _, ok := r.pending[r.pausedAt]; !ok {
			return nil, errors.Wrapf(ErrGraphMismatch, "run paused at %s which is not paused", r.pausedAt)
		}
	}

	for _, s := range states {
		s.node.RestoreState(s.state, s.err)
	}

	return r, nil
}
