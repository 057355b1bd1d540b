package drawer

import (
	"io"

	"github.com/askiada/go-pdq/pkg/pipeline/measure"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a pipeline graph.
type Drawer interface {
	// AddNode adds a node to the drawing.
	AddNode(id, label string) error
	// AddLink adds a link between a parent and a child node.
	AddLink(parentID, childID string) error
	// SetState colours a node according to its run-state.
	SetState(id string, state model.State) error
	// AddMeasure labels nodes with their average duration and candidate count.
	AddMeasure(measure measure.Measure) error
	// Draw writes the drawing.
	Draw(w io.Writer) error
}
