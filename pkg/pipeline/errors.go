package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/pkg/option"
)

var (
	ErrCycle            = errors.New("edge would create a cycle")
	ErrCapacity         = errors.New("port capacity exceeded")
	ErrUnknownNode      = errors.New("unknown node")
	ErrDuplicateNode    = errors.New("node already exists")
	ErrDuplicateEdge    = errors.New("edge already exists")
	ErrInvalidStage     = errors.New("invalid stage")
	ErrStageExecution   = errors.New("stage execution failed")
	ErrInvalidResume    = errors.New("invalid resume")
	ErrRunInProgress    = errors.New("run already in progress")
	ErrRunPaused        = errors.New("run is paused")
	ErrUnknownStageType = errors.New("unknown stage type")
	ErrDuplicateType    = errors.New("stage type already registered")
	ErrGraphMismatch    = errors.New("snapshot does not belong to graph")

	// ErrConfig is returned when a stage configuration is missing a required option or holds an out of range value.
	ErrConfig = option.ErrConfig
)

// StageError reports the failure of a node's stage.
type StageError struct {
	NodeID string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStageExecution) true for every StageError.
func (e *StageError) Is(target error) bool {
	return target == ErrStageExecution
}
