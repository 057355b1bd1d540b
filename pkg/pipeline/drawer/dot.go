package drawer

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/measure"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// DOTDrawer renders the pipeline graph in the Graphviz DOT language.
type DOTDrawer struct {
	mu    sync.Mutex
	graph graph.Graph[string, string]
	order []string
}

// NewDOTDrawer creates an empty drawer.
func NewDOTDrawer() *DOTDrawer {
	return &DOTDrawer{
		graph: graph.New(graph.StringHash, graph.Directed()),
	}
}

// FromGraph creates a drawer holding the nodes, edges and run-states of g.
func FromGraph(g *pipeline.Graph) (*DOTDrawer, error) {
	d := NewDOTDrawer()
	for _, n := range g.Nodes() {
		label := n.ID()
		if n.Type() != "" {
			label = n.ID() + " (" + n.Type() + ")"
		}
		err := d.AddNode(n.ID(), label)
		if err != nil {
			return nil, err
		}
		err = d.SetState(n.ID(), n.State())
		if err != nil {
			return nil, err
		}
	}
	for _, e := range g.Edges() {
		err := d.AddLink(e.Source, e.Target)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// AddNode adds a node to the pipeline graph.
func (d *DOTDrawer) AddNode(id, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.graph.AddVertex(id,
		graph.VertexAttribute("label", label),
		graph.VertexAttribute("shape", "box"),
		graph.VertexAttribute("style", "filled"),
	)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}
	d.order = append(d.order, id)

	return nil
}

// AddLink adds a link between parent and child nodes.
func (d *DOTDrawer) AddLink(parentID, childID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.graph.AddEdge(parentID, childID)
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentID, childID)
	}

	return nil
}

var stateRGB = map[model.State][3]uint8{
	model.Unstarted: {211, 211, 211},
	model.Running:   {255, 215, 0},
	model.Paused:    {255, 140, 0},
	model.Completed: {60, 179, 113},
	model.Failed:    {220, 20, 60},
}

// StateColour returns the hex fill colour of a run-state.
func StateColour(state model.State) (string, error) {
	rgb, ok := stateRGB[state]
	if !ok {
		return "", errors.Wrapf(model.ErrUnknownValue, "state %d", int(state))
	}
	c, err := colors.RGB(rgb[0], rgb[1], rgb[2]) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return c.ToHEX().String(), nil
}

// SetState sets the fill colour of a node.
func (d *DOTDrawer) SetState(id string, state model.State) error {
	colour, err := StateColour(state)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, properties, err := d.graph.VertexWithProperties(id)
	if err != nil {
		return errors.Wrap(err, "unable to get vertex properties")
	}
	properties.Attributes["fillcolor"] = colour
	properties.Attributes["tooltip"] = state.String()

	return nil
}

// AddMeasure adds the node metrics to the drawing.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, mt := range msr.AllMetrics() {
		_, properties, err := d.graph.VertexWithProperties(id)
		if err != nil {
			return errors.Wrap(err, "unable to get vertex properties")
		}

		xlabel := ""
		if avg := mt.AVGDuration(); avg != 0 {
			xlabel = avg.String()
		}
		if mt.Runs() > 1 {
			xlabel += fmt.Sprintf(", runs: %d", mt.Runs())
		}
		if mt.Candidates() > 0 {
			xlabel += fmt.Sprintf(", candidates: %d", mt.Candidates())
		}
		if xlabel != "" {
			properties.Attributes["xlabel"] = xlabel
		}
	}

	return nil
}

// Draw writes the DOT description of the graph.
func (d *DOTDrawer) Draw(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, err := d.describe()
	if err != nil {
		return errors.Wrap(err, "unable to generate DOT description")
	}

	return renderDOT(w, desc)
}

// DrawFile writes the DOT description to path.
func (d *DOTDrawer) DrawFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", path)
	}
	defer file.Close()

	err = d.Draw(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", path)
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

// describe lists the vertices in insertion order, each followed by its edges sorted by target.
func (d *DOTDrawer) describe() (description, error) {
	desc := description{
		GraphType:    "digraph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "->",
		Statements:   make([]statement, 0),
	}

	adjacencyMap, err := d.graph.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for _, vertex := range d.order {
		_, sourceProperties, err := d.graph.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		attributes := make(map[string]string, len(sourceProperties.Attributes))
		htmlAttributes := make(map[string]string)
		for k, v := range sourceProperties.Attributes {
			attributes[k] = v
		}
		if xlabel, ok := attributes["xlabel"]; ok {
			htmlAttributes["label"] = fmt.Sprintf(`<%s <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, attributes["label"], xlabel)
			delete(attributes, "xlabel")
			delete(attributes, "label")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: attributes,
			HTMLAttributes:   htmlAttributes,
		})

		targets := make([]string, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}
		slices.Sort(targets)
		for _, target := range targets {
			edge := adjacencyMap[vertex][target]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
