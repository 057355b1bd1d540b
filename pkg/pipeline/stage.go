package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/dataset"
	"github.com/askiada/go-pdq/pkg/detect"
	"github.com/askiada/go-pdq/pkg/option"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Stage is a unit of pipeline work.
//
// The runner switches on Kind:
//   - model.Reader stages get a nil input and must return a dataset.
//   - model.Writer stages consume their input and return no output.
//   - model.Action stages transform their input.
//   - model.PatternDetector stages return candidates, and must implement Resolver.
//     A detector returning no candidate passes its input through.
type Stage interface {
	Kind() model.Kind
	Options() *option.Options
	MaxInputs() int
	MaxOutputs() int
	Run(ctx context.Context, input *dataset.Dataset) (*Result, error)
}

// Result is the outcome of a stage run.
type Result struct {
	Output *dataset.Dataset
	// Candidates are the unresolved issues found by a pattern detector.
	Candidates []detect.Candidate
}

// Resolver merges approved resolutions into the dataset a detector inspected.
type Resolver interface {
	Resolve(ctx context.Context, input *dataset.Dataset, candidates []detect.Candidate, resolutions map[string]string) (*dataset.Dataset, error)
}

func validateStage(stage Stage) error {
	if stage == nil {
		return errors.Wrap(ErrInvalidStage, "stage must be set")
	}
	if stage.MaxInputs() < 0 || stage.MaxOutputs() < 0 {
		return errors.Wrap(ErrInvalidStage, "arity must not be negative")
	}
	switch stage.Kind() {
	case model.Reader:
		if stage.MaxInputs() != 0 {
			return errors.Wrapf(ErrInvalidStage, "reader must not accept inputs, got %d", stage.MaxInputs())
		}

		return nil
	case model.Writer:
		if stage.MaxOutputs() != 0 {
			return errors.Wrapf(ErrInvalidStage, "writer must not have outputs, got %d", stage.MaxOutputs())
		}
	case model.PatternDetector:
		if _, ok := stage.(Resolver); !ok {
			return errors.Wrap(ErrInvalidStage, "pattern detector must implement Resolver")
		}
	case model.Action:
	default:
		return errors.Wrapf(ErrInvalidStage, "unknown kind %d", int(stage.Kind()))
	}
	// the runner hands a node the output of its single predecessor
	if stage.MaxInputs() != 1 {
		return errors.Wrapf(ErrInvalidStage, "%s must accept exactly one input, got %d", stage.Kind(), stage.MaxInputs())
	}

	return nil
}
