package measure

import (
	"maps"
	"sync"
)

type DefaultMeasure struct {
	mu    sync.Mutex
	nodes map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		nodes: make(map[string]Metric),
	}
}

func (m *DefaultMeasure) Metric(nodeID string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.nodes[nodeID]
	if !ok {
		mt = &DefaultMetric{}
		m.nodes[nodeID] = mt
	}

	return mt
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.nodes)
}

var _ Measure = (*DefaultMeasure)(nil)
