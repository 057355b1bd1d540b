package pipeline

import (
	"context"
	"maps"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// DecisionKind is the human answer to a paused detector.
type DecisionKind int

const (
	// DecisionApply merges the resolutions into the dataset.
	DecisionApply DecisionKind = iota
	// DecisionDiscard passes the detector input through unchanged.
	DecisionDiscard
	// DecisionEdit replaces the detector output with a manually edited dataset.
	DecisionEdit
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionApply:
		return "apply"
	case DecisionDiscard:
		return "discard"
	case DecisionEdit:
		return "edit"
	default:
		return "unknown"
	}
}

// Decision resolves the candidates of a paused node.
type Decision struct {
	Kind DecisionKind
	// Resolutions maps an original value to its replacement. Used by DecisionApply.
	Resolutions map[string]string
	// Dataset is the edited output. Used by DecisionEdit.
	Dataset *dataset.Dataset
}

// Apply approves the given resolutions.
func Apply(resolutions map[string]string) Decision {
	return Decision{Kind: DecisionApply, Resolutions: maps.Clone(resolutions)}
}

// Discard ignores every candidate.
func Discard() Decision {
	return Decision{Kind: DecisionDiscard}
}

// Edit replaces the node output with ds.
func Edit(ds *dataset.Dataset) Decision {
	return Decision{Kind: DecisionEdit, Dataset: ds}
}

// Decider takes the human decision for a paused node.
type Decider interface {
	Decide(ctx context.Context, node model.NodeInfo, candidates []detect.Candidate) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, node model.NodeInfo, candidates []detect.Candidate) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, node model.NodeInfo, candidates []detect.Candidate) (Decision, error) {
	return f(ctx, node, candidates)
}

// ApplyAll accepts every candidate. Values linked by candidate pairs are
// replaced by the most frequent value of their cluster, see detect.Unify.
func ApplyAll(candidates []detect.Candidate) (Decision, error) {
	res, err := detect.Unify(candidates)
	if err != nil {
		return Decision{}, err
	}

	return Apply(res), nil
}
