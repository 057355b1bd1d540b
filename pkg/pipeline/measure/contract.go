package measure

import "time"

// Measure holds one metric per node.
type Measure interface {
	// Metric returns the metric of a node, creating it on first use.
	Metric(nodeID string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the executions of a node.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AVGDuration() time.Duration
	TotalDuration() time.Duration
	Runs() int64
	AddCandidates(count int)
	Candidates() int64
	AddFailure()
	Failures() int64
}
