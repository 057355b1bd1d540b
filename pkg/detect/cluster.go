package detect

import (
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// Unify groups the values linked by candidate pairs into clusters and maps every
// value of a cluster to its canonical label: the most frequent value, the first
// seen on a tie. No replacement is ever a key of the result, so applying it once
// leaves a single label per cluster.
func Unify(candidates []Candidate) (map[string]string, error) {
	// pairs are stored in both directions, so strong components are the clusters
	g := graph.New(graph.StringHash, graph.Directed())
	seen := map[string]int{}
	counts := map[string]int{}
	addValue := func(v string, count int) error {
		if _, ok := seen[v]; !ok {
			seen[v] = len(seen)
			err := g.AddVertex(v)
			if err != nil {
				return errors.Wrapf(err, "unable to add value %q", v)
			}
		}
		counts[v] = max(counts[v], count)

		return nil
	}
	addLink := func(a, b string) error {
		err := g.AddEdge(a, b)
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return errors.Wrapf(err, "unable to link %q and %q", a, b)
		}

		return nil
	}

	for _, c := range candidates {
		if err := addValue(c.Original, c.OriginalCount); err != nil {
			return nil, err
		}
		if err := addValue(c.Match, c.MatchCount); err != nil {
			return nil, err
		}
		if err := addLink(c.Original, c.Match); err != nil {
			return nil, err
		}
		if err := addLink(c.Match, c.Original); err != nil {
			return nil, err
		}
	}

	clusters, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return nil, errors.Wrap(err, "unable to cluster values")
	}
	res := make(map[string]string, len(seen))
	for _, cluster := range clusters {
		canonical := slices.MinFunc(cluster, func(a, b string) int {
			if counts[a] != counts[b] {
				return counts[b] - counts[a]
			}

			return seen[a] - seen[b]
		})
		for _, v := range cluster {
			if v != canonical {
				res[v] = canonical
			}
		}
	}

	return res, nil
}
