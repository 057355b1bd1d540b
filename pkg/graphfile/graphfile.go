// Package graphfile encodes pipeline graphs as YAML documents.
//
// A document holds the graph metadata, one entry per node with its stage type,
// explicitly set options and run-state, and the edges.
package graphfile

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

var ErrUntypedNode = errors.New("node has no stage type")

// LoadMode tells Decode whether restored run-states notify observers.
type LoadMode int

const (
	// LoadSilent restores run-states without notifying observers.
	LoadSilent LoadMode = iota
	// LoadNotify reports every restored run-state as a transition from UNSTARTED.
	LoadNotify
)

// Document is the YAML form of a graph.
type Document struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name,omitempty"`
	Creator     string          `yaml:"creator,omitempty"`
	Owner       string          `yaml:"owner,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Created     time.Time       `yaml:"created,omitempty"`
	Modified    time.Time       `yaml:"modified,omitempty"`
	Nodes       []NodeDoc       `yaml:"nodes"`
	Edges       []pipeline.Edge `yaml:"edges,omitempty"`
}

// NodeDoc is the YAML form of a node.
type NodeDoc struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options,omitempty"`
	State   *model.State   `yaml:"state,omitempty"`
	Error   string         `yaml:"error,omitempty"`
}

// Encode renders g as YAML. Nodes keep their insertion order.
func Encode(g *pipeline.Graph) ([]byte, error) {
	doc := Document{
		ID:          g.ID,
		Name:        g.Name,
		Creator:     g.Creator,
		Owner:       g.Owner,
		Description: g.Description,
		Created:     g.Created,
		Modified:    g.Modified,
		Edges:       g.Edges(),
	}
	for _, n := range g.Nodes() {
		if n.Type() == "" {
			return nil, errors.Wrap(ErrUntypedNode, n.ID())
		}
		nd := NodeDoc{ID: n.ID(), Type: n.Type()}
		if values := n.Stage().Options().Values(); len(values) > 0 {
			nd.Options = values
		}
		if state := n.State(); state != model.Unstarted {
			nd.State = &state
		}
		if err := n.Err(); err != nil {
			nd.Error = err.Error()
			var serr *pipeline.StageError
			if errors.As(err, &serr) {
				nd.Error = serr.Err.Error()
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal graph")
	}

	return data, nil
}

// Decode builds a graph from YAML, creating stages through reg.
func Decode(data []byte, reg *pipeline.Registry, mode LoadMode, observers ...model.Observer) (*pipeline.Graph, error) {
	var doc Document
	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal graph")
	}

	return Build(doc, reg, mode, observers...)
}

// Build creates the graph described by doc.
func Build(doc Document, reg *pipeline.Registry, mode LoadMode, observers ...model.Observer) (*pipeline.Graph, error) {
	g := pipeline.NewGraph(pipeline.GraphID(doc.ID), pipeline.GraphName(doc.Name))
	g.Creator = doc.Creator
	g.Owner = doc.Owner
	g.Description = doc.Description

	restored := []*pipeline.Node{}
	for _, nd := range doc.Nodes {
		if nd.Type == "" {
			return nil, errors.Wrap(ErrUntypedNode, nd.ID)
		}
		n, err := reg.NewNode(nd.ID, nd.Type, nd.Options)
		if err != nil {
			return nil, err
		}
		err = g.AddNode(n)
		if err != nil {
			return nil, err
		}
		if nd.State != nil && *nd.State != model.Unstarted {
			state := *nd.State
			// pending candidates live in run snapshots, not in graph documents
			if state == model.Paused {
				state = model.Unstarted
			}
			cause := &pipeline.StageError{NodeID: nd.ID, Err: errors.New(nd.Error)}
			if n.RestoreState(state, cause) != model.Unstarted {
				restored = append(restored, n)
			}
		}
	}
	for _, e := range doc.Edges {
		err := g.AddEdge(e.Source, e.Target)
		if err != nil {
			return nil, err
		}
	}

	if !doc.Created.IsZero() {
		g.Created = doc.Created
	}
	g.Modified = doc.Modified
	if g.Modified.IsZero() {
		g.Modified = g.Created
	}

	if mode == LoadNotify {
		for _, n := range restored {
			for _, obs := range observers {
				err := obs.OnNodeStateChange(n.Info(), model.Unstarted)
				if err != nil {
					return nil, errors.Wrapf(err, "observer rejected node %s", n.ID())
				}
			}
		}
	}

	return g, nil
}

// Load reads and decodes the graph file at path.
func Load(path string, reg *pipeline.Registry, mode LoadMode, observers ...model.Observer) (*pipeline.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	g, err := Decode(data, reg, mode, observers...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}

	return g, nil
}

// Save encodes g and writes it to path.
func Save(path string, g *pipeline.Graph) error {
	data, err := Encode(g)
	if err != nil {
		return err
	}
	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	return nil
}
