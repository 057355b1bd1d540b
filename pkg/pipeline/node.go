package pipeline

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Node wraps a stage with an identity and a run-state.
type Node struct {
	id    string
	typ   string
	stage Stage

	mu    sync.RWMutex
	state model.State
	err   error
}

// NewNode creates an unstarted node. typ is the registry type of the stage,
// used when the graph is persisted; it may be empty for ad hoc stages.
func NewNode(id, typ string, stage Stage) (*Node, error) {
	if id == "" {
		return nil, errors.Wrap(ErrInvalidStage, "node id must be set")
	}
	err := validateStage(stage)
	if err != nil {
		return nil, errors.Wrapf(err, "node %s", id)
	}

	return &Node{id: id, typ: typ, stage: stage}, nil
}

func (n *Node) ID() string {
	return n.id
}

// Type returns the registry type of the stage.
func (n *Node) Type() string {
	return n.typ
}

func (n *Node) Stage() Stage {
	return n.stage
}

func (n *Node) Kind() model.Kind {
	return n.stage.Kind()
}

func (n *Node) State() model.State {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.state
}

// Err returns the error that failed the node.
func (n *Node) Err() error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.err
}

// Info describes the node for observers.
func (n *Node) Info() model.NodeInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return model.NodeInfo{
		ID:    n.id,
		Type:  n.typ,
		Kind:  n.stage.Kind(),
		State: n.state,
		Err:   n.err,
	}
}

// transition moves the node to next and returns the previous state.
func (n *Node) transition(next model.State, cause error) (model.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev := n.state
	if !prev.CanTransition(next) {
		return prev, errors.Errorf("node %s: invalid transition %s -> %s", n.id, prev, next)
	}
	n.state = next
	if next == model.Failed {
		n.err = cause
	}

	return prev, nil
}

// reset moves the node back to Unstarted and returns the previous state.
func (n *Node) reset() model.State {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev := n.state
	n.state = model.Unstarted
	n.err = nil

	return prev
}

// RestoreState sets a persisted state without transition checks and returns
// the state actually set. A RUNNING node is restored as UNSTARTED.
func (n *Node) RestoreState(state model.State, cause error) model.State {
	n.mu.Lock()
	defer n.mu.Unlock()

	if state == model.Running {
		state = model.Unstarted
	}
	n.state = state
	n.err = nil
	if state == model.Failed {
		n.err = cause
	}

	return state
}
