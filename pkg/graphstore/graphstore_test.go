package graphstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pdq/pkg/graphfile"
	"github.com/askiada/go-pdq/pkg/graphstore"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/stages"
)

func newGraph(t *testing.T, reg *pipeline.Registry) *pipeline.Graph {
	t.Helper()

	g := pipeline.NewGraph(pipeline.GraphID("weekly"), pipeline.GraphName("Weekly clean-up"))
	read, err := reg.NewNode("read", stages.CSVReaderType, map[string]any{"Path": "events.csv"})
	require.NoError(t, err)
	trim, err := reg.NewNode("trim", stages.WhitespaceTrimmerType, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddNode(read))
	require.NoError(t, g.AddNode(trim))
	require.NoError(t, g.AddEdge("read", "trim"))

	return g
}

func TestStores(t *testing.T) {
	t.Parallel()

	tcs := map[string]func(t *testing.T) graphstore.Store{
		"memory": func(*testing.T) graphstore.Store { return graphstore.NewMemoryStore() },
		"file": func(t *testing.T) graphstore.Store {
			st, err := graphstore.NewFileStore(t.TempDir())
			require.NoError(t, err)

			return st
		},
	}

	for name, newStore := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := pipeline.NewRegistry()
			require.NoError(t, stages.Register(reg, nil))
			st := newStore(t)

			_, err := st.Load(t.Context(), "weekly")
			require.ErrorIs(t, err, graphstore.ErrNotFound)

			g := newGraph(t, reg)
			before := g.Modified
			time.Sleep(time.Millisecond)
			require.NoError(t, graphstore.SaveGraph(t.Context(), st, g))
			assert.True(t, g.Modified.After(before))

			rec, err := st.Load(t.Context(), "weekly")
			require.NoError(t, err)
			assert.Equal(t, "Weekly clean-up", rec.Name)
			assert.True(t, g.Created.Equal(rec.Created))
			assert.True(t, g.Modified.Equal(rec.Modified))

			loaded, err := graphstore.LoadGraph(t.Context(), st, "weekly", reg, graphfile.LoadSilent)
			require.NoError(t, err)
			assert.Equal(t, g.Edges(), loaded.Edges())
			assert.Equal(t, "Weekly clean-up", loaded.Name)

			require.NoError(t, st.Save(t.Context(), &graphstore.Record{ID: "another", Content: "id: another\nnodes: []\n"}))
			list, err := st.List(t.Context())
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "another", list[0].ID)
			assert.Equal(t, "weekly", list[1].ID)

			require.ErrorIs(t, st.Save(t.Context(), &graphstore.Record{}), graphstore.ErrInvalidID)
		})
	}
}

func TestFileStoreRejectsPaths(t *testing.T) {
	t.Parallel()

	st, err := graphstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", ".hidden"} {
		_, err := st.Load(t.Context(), id)
		require.ErrorIs(t, err, graphstore.ErrInvalidID, id)
	}
}
