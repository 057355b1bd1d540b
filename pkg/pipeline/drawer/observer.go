package drawer

import (
	"github.com/askiada/go-pdq/pkg/pipeline/model"
)

// Observer keeps the node colours of a drawer in sync with a run.
type Observer struct {
	model.BaseObserver

	drawer Drawer
}

func NewObserver(d Drawer) *Observer {
	return &Observer{drawer: d}
}

func (o *Observer) OnNodeStateChange(node model.NodeInfo, _ model.State) error {
	return o.drawer.SetState(node.ID, node.State)
}

var _ model.Observer = (*Observer)(nil)
