package measure

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// PrometheusObserver exports node transitions, run outcomes and candidate counts.
type PrometheusObserver struct {
	model.BaseObserver

	transitions *prometheus.CounterVec
	runs        *prometheus.CounterVec
	candidates  *prometheus.CounterVec
}

// NewPrometheusObserver creates the collectors and registers them on reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	obs := &PrometheusObserver{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdq",
			Name:      "node_transitions_total",
			Help:      "Node run-state transitions by target state.",
		}, []string{"node", "state"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdq",
			Name:      "runs_total",
			Help:      "Run starts and outcomes by status.",
		}, []string{"graph", "status"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdq",
			Name:      "candidates_total",
			Help:      "Candidates reported by pattern detectors.",
		}, []string{"node"}),
	}
	for _, c := range []prometheus.Collector{obs.transitions, obs.runs, obs.candidates} {
		err := reg.Register(c)
		if err != nil {
			return nil, errors.Wrap(err, "unable to register collector")
		}
	}

	return obs, nil
}

func (o *PrometheusObserver) OnRunStart(run model.RunInfo) error {
	o.runs.WithLabelValues(run.GraphID, model.RunRunning.String()).Inc()

	return nil
}

func (o *PrometheusObserver) OnNodeStateChange(node model.NodeInfo, _ model.State) error {
	o.transitions.WithLabelValues(node.ID, node.State.String()).Inc()

	return nil
}

func (o *PrometheusObserver) OnRunPause(run model.RunInfo, node model.NodeInfo, candidates int) error {
	o.runs.WithLabelValues(run.GraphID, model.RunPaused.String()).Inc()
	o.candidates.WithLabelValues(node.ID).Add(float64(candidates))

	return nil
}

func (o *PrometheusObserver) OnRunComplete(run model.RunInfo) error {
	o.runs.WithLabelValues(run.GraphID, model.RunCompleted.String()).Inc()

	return nil
}

func (o *PrometheusObserver) OnRunFail(run model.RunInfo, _ error) error {
	o.runs.WithLabelValues(run.GraphID, run.Status.String()).Inc()

	return nil
}

var _ model.Observer = (*PrometheusObserver)(nil)

func (o *PrometheusObserver) Transitions() *prometheus.CounterVec { return o.transitions }
func (o *PrometheusObserver) Runs() *prometheus.CounterVec        { return o.runs }
func (o *PrometheusObserver) Candidates() *prometheus.CounterVec  { return o.candidates }
