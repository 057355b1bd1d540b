package pipeline

import (
	"log/slog"

	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// GraphOption configures a graph on creation.
type GraphOption func(g *Graph)

// GraphID sets the graph identity instead of a random one.
func GraphID(id string) GraphOption {
	return func(g *Graph) {
		if id != "" {
			g.ID = id
		}
	}
}

// GraphName sets the human readable name of the graph.
func GraphName(name string) GraphOption {
	return func(g *Graph) {
		g.Name = name
	}
}

// RunnerOption configures a runner on creation.
type RunnerOption func(r *Runner)

// WithLogger sets the logger of the run, replacing any logger carried by the context.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an observer notified of run and node transitions.
func WithObserver(obs model.Observer) RunnerOption {
	return func(r *Runner) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// WithConcurrency sets how many ready nodes may run at the same time.
// Values lower than 1 are ignored.
func WithConcurrency(concurrent int) RunnerOption {
	return func(r *Runner) {
		if concurrent > 0 {
			r.concurrent = concurrent
		}
	}
}
