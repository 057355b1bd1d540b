package measure

import (
	"sync"
	"time"

	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Observer fills a Measure from run notifications. A node execution lasts from
// its move to RUNNING to the next transition.
type Observer struct {
	model.BaseObserver

	measure Measure
	now     func() time.Time

	mu      sync.Mutex
	started map[string]time.Time
}

func NewObserver(m Measure) *Observer {
	return &Observer{
		measure: m,
		now:     time.Now,
		started: make(map[string]time.Time),
	}
}

// Measure returns the measure filled by the observer.
func (o *Observer) Measure() Measure {
	return o.measure
}

func (o *Observer) OnNodeStateChange(node model.NodeInfo, from model.State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if node.State == model.Running {
		o.started[node.ID] = o.now()

		return nil
	}
	if from == model.Running {
		if start, ok := o.started[node.ID]; ok {
			o.measure.Metric(node.ID).AddDuration(o.now().Sub(start))
			delete(o.started, node.ID)
		}
	}
	if node.State == model.Failed {
		o.measure.Metric(node.ID).AddFailure()
	}

	return nil
}

func (o *Observer) OnRunPause(_ model.RunInfo, node model.NodeInfo, candidates int) error {
	o.measure.Metric(node.ID).AddCandidates(candidates)

	return nil
}

var _ model.Observer = (*Observer)(nil)
