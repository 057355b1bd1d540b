package pipeline

import (
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/askiada/go-pdq/internal/store"
)

// Edge is a directed connection from the output port of Source to the input port of Target.
type Edge struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Graph is a directed acyclic graph of nodes.
type Graph struct {
	ID          string
	Name        string
	Creator     string
	Owner       string
	Description string
	Created     time.Time
	Modified    time.Time

	mu    sync.RWMutex
	store store.OrderedStore[string, *Node]
	graph graph.Graph[string, *Node]
}

func nodeHash(n *Node) string {
	return n.id
}

// NewGraph creates an empty graph. Without the GraphID option, a random id is used.
func NewGraph(opts ...GraphOption) *Graph {
	st := store.NewMemoryStore[string, *Node]()
	now := time.Now().UTC()
	g := &Graph{
		ID:       uuid.NewString(),
		Created:  now,
		Modified: now,
		store:    st,
		graph:    graph.NewWithStore(nodeHash, st, graph.Directed(), graph.PreventCycles()),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Graph) touch() {
	g.Modified = time.Now().UTC()
}

// AddNode adds a node. It fails with ErrDuplicateNode if the id is taken.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return errors.Wrap(ErrInvalidStage, "node must be set")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.graph.AddVertex(n)
	if errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(ErrDuplicateNode, n.id)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to add node %s", n.id)
	}
	g.touch()

	return nil
}

// RemoveNode removes a node and its edges.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.node(id); err != nil {
		return err
	}
	for _, pred := range g.store.Predecessors(id) {
		if err := g.graph.RemoveEdge(pred, id); err != nil {
			return errors.Wrapf(err, "unable to remove edge %s -> %s", pred, id)
		}
	}
	for _, succ := range g.store.Successors(id) {
		if err := g.graph.RemoveEdge(id, succ); err != nil {
			return errors.Wrapf(err, "unable to remove edge %s -> %s", id, succ)
		}
	}
	if err := g.graph.RemoveVertex(id); err != nil {
		return errors.Wrapf(err, "unable to remove node %s", id)
	}
	g.touch()

	return nil
}

// AddEdge connects source to target. The graph is left unchanged on error:
//   - ErrUnknownNode if an endpoint is absent,
//   - ErrDuplicateEdge if the edge exists,
//   - ErrCapacity if the source outputs or the target inputs are saturated,
//   - ErrCycle if the edge would create a path back to source.
func (g *Graph) AddEdge(source, target string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, err := g.node(source)
	if err != nil {
		return err
	}
	tgt, err := g.node(target)
	if err != nil {
		return err
	}
	if _, err := g.graph.Edge(source, target); err == nil {
		return errors.Wrapf(ErrDuplicateEdge, "%s -> %s", source, target)
	}
	if out := g.store.OutDegree(source); out >= src.stage.MaxOutputs() {
		return errors.Wrapf(ErrCapacity, "node %s accepts %d output(s)", source, src.stage.MaxOutputs())
	}
	if in := g.store.InDegree(target); in >= tgt.stage.MaxInputs() {
		return errors.Wrapf(ErrCapacity, "node %s accepts %d input(s)", target, tgt.stage.MaxInputs())
	}

	err = g.graph.AddEdge(source, target)
	if errors.Is(err, graph.ErrEdgeCreatesCycle) {
		return errors.Wrapf(ErrCycle, "%s -> %s", source, target)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to add edge %s -> %s", source, target)
	}
	g.touch()

	return nil
}

// RemoveEdge disconnects source from target.
func (g *Graph) RemoveEdge(source, target string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.graph.RemoveEdge(source, target)
	if errors.Is(err, graph.ErrEdgeNotFound) {
		return errors.Wrapf(ErrUnknownNode, "no edge %s -> %s", source, target)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to remove edge %s -> %s", source, target)
	}
	g.touch()

	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.node(id)
}

func (g *Graph) node(id string) (*Node, error) {
	n, err := g.graph.Vertex(id)
	if err != nil {
		return nil, errors.Wrap(ErrUnknownNode, id)
	}

	return n, nil
}

func (g *Graph) nodes(ids []string) []*Node {
	res := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, err := g.node(id); err == nil {
			res = append(res, n)
		}
	}

	return res
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids, _ := g.store.ListVertices()

	return g.nodes(ids)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count, _ := g.store.VertexCount()

	return count
}

// Edges returns all edges ordered by source insertion then edge insertion.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges, _ := g.store.ListEdges()
	res := make([]Edge, len(edges))
	for i, e := range edges {
		res[i] = Edge{Source: e.Source, Target: e.Target}
	}

	return res
}

// Heads returns the nodes without incoming edges, in insertion order.
func (g *Graph) Heads() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes(g.store.Heads())
}

// IsHead reports whether id has no incoming edge.
func (g *Graph) IsHead(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.store.InDegree(id) == 0
}

// Successors returns the targets of the outgoing edges of id.
func (g *Graph) Successors(id string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes(g.store.Successors(id))
}

// Predecessors returns the sources of the incoming edges of id.
func (g *Graph) Predecessors(id string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes(g.store.Predecessors(id))
}

// Descendants returns the nodes reachable from id, in topological order.
func (g *Graph) Descendants(id string) ([]*Node, error) {
	order, err := g.topologicalIDs()
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, err := g.node(id); err != nil {
		return nil, err
	}
	reached := map[string]bool{id: true}
	res := []*Node{}
	for _, nid := range order {
		if nid == id {
			continue
		}
		for _, pred := range g.store.Predecessors(nid) {
			if reached[pred] {
				reached[nid] = true
				res = append(res, g.nodes([]string{nid})...)

				break
			}
		}
	}

	return res, nil
}

// TopologicalOrder returns the nodes such that every node comes after all of
// its predecessors. Nodes without ordering constraint are sorted by id, so the
// order is stable across calls. It fails with ErrCycle if the graph is not acyclic.
func (g *Graph) TopologicalOrder() (iter.Seq[*Node], error) {
	order, err := g.topologicalIDs()
	if err != nil {
		return nil, err
	}

	return func(yield func(*Node) bool) {
		for _, id := range order {
			n, err := g.Node(id)
			if err != nil {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}, nil
}

func (g *Graph) topologicalIDs() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids, err := g.store.ListVertices()
	if err != nil {
		return nil, errors.Wrap(err, "unable to list nodes")
	}

	inDegree := make(map[string]int, len(ids))
	ready := []string{}
	for _, id := range ids {
		inDegree[id] = g.store.InDegree(id)
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, succ := range g.store.Successors(id) {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				pos, _ := slices.BinarySearch(ready, succ)
				ready = slices.Insert(ready, pos, succ)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, errors.Wrapf(ErrCycle, "%d node(s) are part of a cycle", len(ids)-len(order))
	}

	return order, nil
}
