package store_test

import (
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pdq/internal/store"
)

func newGraph(t *testing.T) (graph.Graph[string, string], store.OrderedStore[string, string]) {
	t.Helper()
	st := store.NewMemoryStore[string, string]()
	g := graph.NewWithStore(graph.StringHash, st, graph.Directed(), graph.PreventCycles())
	for _, v := range []string{"read", "detect", "write", "audit"} {
		require.NoError(t, g.AddVertex(v))
	}

	return g, st
}

func TestOrderedAdjacency(t *testing.T) {
	t.Parallel()

	g, st := newGraph(t)
	require.NoError(t, g.AddEdge("read", "write"))
	require.NoError(t, g.AddEdge("read", "detect"))
	require.NoError(t, g.AddEdge("detect", "write"))

	vertices, err := st.ListVertices()
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "detect", "write", "audit"}, vertices)
	assert.Equal(t, []string{"read", "audit"}, st.Heads())
	assert.Equal(t, []string{"write", "detect"}, st.Successors("read"))
	assert.Equal(t, []string{"read", "detect"}, st.Predecessors("write"))
	assert.Equal(t, 2, st.InDegree("write"))
	assert.Equal(t, 2, st.OutDegree("read"))

	edges, err := st.ListEdges()
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, "read", edges[0].Source)
	assert.Equal(t, "write", edges[0].Target)
}

func TestCreatesCycle(t *testing.T) {
	t.Parallel()

	g, st := newGraph(t)
	require.NoError(t, g.AddEdge("read", "detect"))
	require.NoError(t, g.AddEdge("detect", "write"))

	cycle, err := st.(*store.MemoryStore[string, string]).CreatesCycle("write", "read")
	require.NoError(t, err)
	assert.True(t, cycle)

	err = g.AddEdge("write", "read")
	require.ErrorIs(t, err, graph.ErrEdgeCreatesCycle)
	assert.Empty(t, st.Successors("write"))

	cycle, err = st.(*store.MemoryStore[string, string]).CreatesCycle("read", "audit")
	require.NoError(t, err)
	assert.False(t, cycle)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	g, st := newGraph(t)
	require.NoError(t, g.AddEdge("read", "detect"))

	require.ErrorIs(t, st.RemoveVertex("read"), graph.ErrVertexHasEdges)
	require.NoError(t, g.RemoveEdge("read", "detect"))
	assert.Empty(t, st.Successors("read"))
	require.NoError(t, st.RemoveVertex("read"))

	vertices, err := st.ListVertices()
	require.NoError(t, err)
	assert.Equal(t, []string{"detect", "write", "audit"}, vertices)
}
