// Package pipeline executes data-quality remediation graphs.
//
// A Graph is a directed acyclic graph of Nodes. Each node owns a Stage: a reader producing a dataset, a pattern
// detector looking for imperfections, an action transforming the dataset or a writer consuming it. Edges are checked
// on insertion, so a graph can never hold a cycle or more connections than a stage accepts.
//
// A Runner walks the graph in topological order, handing every node a copy of the dataset produced by its single
// predecessor. When a pattern detector reports candidates, the whole run pauses at that node until a human decision is
// supplied with Resume: the candidates are either applied, discarded or replaced by a manually edited dataset. The run
// state can be captured with Snapshot and restored with RestoreRunner, so a paused run survives a process restart.
//
// Observers registered on the runner are notified of every node transition and of run start, pause, completion and
// failure.
package pipeline
