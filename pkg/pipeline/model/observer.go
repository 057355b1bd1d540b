package model

// Observer defines the hooks notified while a graph runs.
type Observer interface {
	// OnRunStart runs when a run or a resumed run starts walking the graph.
	OnRunStart(run RunInfo) error
	// OnNodeStateChange runs on every node transition.
	OnNodeStateChange(node NodeInfo, from State) error
	// OnRunPause runs when a pattern detector suspends the walk.
	OnRunPause(run RunInfo, node NodeInfo, candidates int) error
	// OnRunComplete runs when every node completed.
	OnRunComplete(run RunInfo) error
	// OnRunFail runs when the walk ended with failed nodes or was aborted.
	OnRunFail(run RunInfo, err error) error
}

// BaseObserver implements Observer with no-op hooks. Embed it to override only some hooks.
type BaseObserver struct{}

func (BaseObserver) OnRunStart(RunInfo) error                { return nil }
func (BaseObserver) OnNodeStateChange(NodeInfo, State) error { return nil }
func (BaseObserver) OnRunPause(RunInfo, NodeInfo, int) error { return nil }
func (BaseObserver) OnRunComplete(RunInfo) error             { return nil }
func (BaseObserver) OnRunFail(RunInfo, error) error          { return nil }

var _ Observer = BaseObserver{}
